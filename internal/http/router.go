// Package http exposes the Mini App and admin API over gin.
package http

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/open-builders/contest-bot/internal/common/middleware"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
	"github.com/open-builders/contest-bot/internal/domain/broadcast"
	"github.com/open-builders/contest-bot/internal/domain/channel"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/domain/user"
)

type Contests interface {
	Create(ctx context.Context, p dc.CreateParams) (*dc.Contest, error)
	Get(ctx context.Context, id int64) (*dc.Contest, error)
	Cancel(ctx context.Context, id, actorID int64, isAdmin bool) (bool, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, f dc.ListFilter) ([]dc.Contest, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]dc.Contest, error)
	Trending(ctx context.Context, limit int) ([]dc.Contest, error)
	CountByStatus(ctx context.Context) (dc.StatusCounts, error)
	IncrementViews(ctx context.Context, id int64) error
}

type Participation interface {
	Join(ctx context.Context, contestID, userID int64, referrerID *int64) (dc.JoinResult, error)
	Count(ctx context.Context, contestID int64) (int, error)
	IsParticipating(ctx context.Context, contestID, userID int64) (bool, error)
	List(ctx context.Context, contestID int64, limit int) ([]dc.Participant, error)
	Remove(ctx context.Context, contestID, userID int64) error
}

type Winners interface {
	GetWinners(ctx context.Context, contestID int64) ([]dc.Winner, error)
	MarkPrizeClaimed(ctx context.Context, contestID, userID int64) error
	UserWins(ctx context.Context, userID int64) ([]dc.Winner, error)
	UserStats(ctx context.Context, userID int64) (dc.WinnerStats, error)
}

// Ender ends an active contest now, drawing and announcing winners.
type Ender interface {
	End(ctx context.Context, contestID int64) (bool, error)
}

type Users interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	Touch(ctx context.Context, u *user.User) error
	List(ctx context.Context, limit, offset int) ([]user.User, error)
	Count(ctx context.Context) (int, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
}

type Channels interface {
	Register(ctx context.Context, ownerID, channelID int64) (*channel.Channel, error)
	ListActive(ctx context.Context) ([]channel.Channel, error)
	ListForceSub(ctx context.Context) ([]channel.ForceSubChannel, error)
	AddForceSub(ctx context.Context, f channel.ForceSubChannel) (*channel.ForceSubChannel, error)
	RemoveForceSub(ctx context.Context, channelID int64) error
}

type Broadcasts interface {
	Start(ctx context.Context, adminID int64, text string) (*broadcast.Broadcast, error)
	Get(ctx context.Context, id int64) (*broadcast.Broadcast, error)
	List(ctx context.Context, limit int) ([]broadcast.Broadcast, error)
}

type Analytics interface {
	Track(ctx context.Context, userID int64, t analytics.EventType, contestID *int64)
	Overview(ctx context.Context) (*analytics.Overview, error)
}

// HealthCheck probes one dependency for /ready.
type HealthCheck func(ctx context.Context) error

// Deps wires the router. Redis may be nil, which disables response caching.
type Deps struct {
	Debug       bool
	Origin      string
	BotToken    string
	InitDataTTL time.Duration
	IsAdmin     middleware.AdminCheck

	Contests      Contests
	Participation Participation
	Winners       Winners
	Ender         Ender
	Users         Users
	Channels      Channels
	Broadcasts    Broadcasts
	Analytics     Analytics

	Redis    redis.Cmdable
	CacheTTL time.Duration
	Checks   map[string]HealthCheck
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(d Deps) *gin.Engine {
	if !d.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Second
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Logger())

	corsConfig := cors.DefaultConfig()
	if d.Origin == "" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{d.Origin}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.InitDataHeader}
	router.Use(cors.New(corsConfig))

	h := &handlers{d: d}
	h.registerHealth(router)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1",
		middleware.TelegramInitData(d.BotToken, d.InitDataTTL),
		middleware.RequireAuth(),
		middleware.CheckBanned(d.Users, d.IsAdmin),
		middleware.AutoCreateUser(d.Users),
		middleware.MarkAdmin(d.IsAdmin),
	)
	h.registerContests(v1)

	admin := v1.Group("/admin", middleware.RequireAdmin(d.IsAdmin))
	h.registerAdmin(admin)

	return router
}

type handlers struct {
	d Deps
}
