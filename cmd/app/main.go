package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/open-builders/contest-bot/docs"
	"github.com/open-builders/contest-bot/internal/bot"
	rediscache "github.com/open-builders/contest-bot/internal/cache/redis"
	"github.com/open-builders/contest-bot/internal/common/cache"
	"github.com/open-builders/contest-bot/internal/common/config"
	"github.com/open-builders/contest-bot/internal/common/logger"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	apphttp "github.com/open-builders/contest-bot/internal/http"
	redisplatform "github.com/open-builders/contest-bot/internal/platform/redis"
	"github.com/open-builders/contest-bot/internal/platform/telegram"
	analyticssvc "github.com/open-builders/contest-bot/internal/service/analytics"
	broadcastsvc "github.com/open-builders/contest-bot/internal/service/broadcast"
	"github.com/open-builders/contest-bot/internal/service/channels"
	"github.com/open-builders/contest-bot/internal/service/contest"
	"github.com/open-builders/contest-bot/internal/service/notifications"
	"github.com/open-builders/contest-bot/internal/service/participation"
	"github.com/open-builders/contest-bot/internal/service/scheduler"
	"github.com/open-builders/contest-bot/internal/service/subscription"
	usersvc "github.com/open-builders/contest-bot/internal/service/user"
	"github.com/open-builders/contest-bot/internal/service/winner"
	"github.com/open-builders/contest-bot/internal/workers"
)

const serviceName = "contest-bot"

// @title           Contest Bot API
// @version         1.0
// @description     Mini App and admin API for Telegram channel contests. All endpoints require Telegram init data.

// @BasePath  /api/v1

// @securityDefinitions.apikey TelegramInitData
// @in header
// @name X-Telegram-Init-Data
// @description Raw Telegram Mini App init data

// @tag.name contests
// @tag.description Creating, joining and ending contests

// @tag.name channels
// @tag.description Channels the bot can post to

// @tag.name admin
// @tag.description Moderation, broadcasts and statistics

func main() {
	cfg := config.Load()
	logger.Init(serviceName, cfg.Debug, cfg.LogFormat)

	logger.Info().
		Bool("debug", cfg.Debug).
		Str("storage", cfg.Storage.Driver).
		Bool("async_notifications", cfg.Notifications.Async).
		Msg("Starting contest bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr()).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	tg, err := telegram.New(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to authorize bot")
	}
	logger.Info().Str("username", tg.Username()).Msg("Bot authorized")

	cacheService := cache.NewCacheService(rdb)

	users := usersvc.NewService(repos.users, cacheService, cfg.Cache.UserTTL)
	stats := analyticssvc.NewService(repos.events, repos.users, repos.contests, repos.participants, repos.winners)
	contests := contest.NewService(repos.contests, repos.participants, dc.Limits{
		MaxDuration:     cfg.MaxDuration(),
		MaxWinners:      cfg.Contest.MaxWinners,
		MaxParticipants: cfg.Contest.MaxParticipants,
	}).WithCache(cacheService)
	chans := channels.NewService(repos.channels, tg, cfg.Telegram.SponsorChannelID, cfg.Contest.RequireOwnChannel)
	gate := subscription.NewService(tg, rediscache.NewMembershipCache(rdb, cfg.Subscription.CacheTTL), cfg.Subscription.Timeout)
	joins := participation.NewService(contests, repos.participants,
		participation.WithGate(gate, chans),
		participation.WithCountCache(rediscache.NewCountCache(rdb, cfg.Contest.CountCacheTTL)),
		participation.WithTracker(stats),
	)
	winners := winner.NewService(repos.contests, repos.winners, stats)
	broadcasts := broadcastsvc.NewService(repos.broadcasts, repos.users, tg, cfg.Notifications.BroadcastRate)
	notifier := notifications.NewService(tg, users, tg.Username())

	var wg sync.WaitGroup

	var announcer scheduler.Announcer = notifier
	if cfg.Notifications.Async {
		announcer = workers.NewPublisher(rdb)
		consumer := workers.NewConsumer(rdb, consumerName(), contests, winners, notifier)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Outbox consumer stopped")
			}
		}()
	}

	sched := scheduler.New(contests, winners, announcer, cfg.Scheduler.TickInterval,
		scheduler.WithLocker(redisplatform.NewLocker(rdb), cfg.Scheduler.LockTTL),
		scheduler.WithJobs(
			scheduler.Job{
				Name:     "channel_stats",
				Interval: cfg.Scheduler.ChannelStatsInterval,
				Run: func(ctx context.Context) error {
					_, err := chans.RefreshMemberCounts(ctx)
					return err
				},
			},
			scheduler.Job{
				Name:     "analytics_prune",
				Interval: 24 * time.Hour,
				Run: func(ctx context.Context) error {
					_, err := stats.Prune(ctx, cfg.Scheduler.AnalyticsRetention)
					return err
				},
			},
		),
	)
	sched.Start(ctx)

	b := bot.New(bot.Deps{
		Messenger:     tg,
		Contests:      contests,
		Participation: joins,
		Winners:       winners,
		Users:         users,
		Gate:          gate,
		Channels:      chans,
		Tracker:       stats,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(ctx, tg.API())
	}()

	checks := map[string]apphttp.HealthCheck{"redis": rdb.HealthCheck}
	if repos.check != nil {
		checks["postgres"] = repos.check
	}

	docs.SwaggerInfo.Host = cfg.Server.SwaggerHost
	router := apphttp.NewRouter(apphttp.Deps{
		Debug:         cfg.Debug,
		Origin:        cfg.Server.Origin,
		BotToken:      cfg.Telegram.BotToken,
		InitDataTTL:   cfg.Telegram.InitDataTTL,
		IsAdmin:       cfg.IsAdmin,
		Contests:      contests,
		Participation: joins,
		Winners:       winners,
		Ender:         sched,
		Users:         users,
		Channels:      chans,
		Broadcasts:    broadcasts,
		Analytics:     stats,
		Redis:         rdb,
		CacheTTL:      cfg.Cache.ResponseTTL,
		Checks:        checks,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	sched.Stop()
	broadcasts.Wait()
	wg.Wait()

	logger.Info().Msg("Stopped")
}

// consumerName identifies this process inside the outbox consumer group.
func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "app"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func openRedis(ctx context.Context, cfg *config.Config) (*redisplatform.Client, error) {
	if cfg.Redis.URL != "" {
		return redisplatform.OpenURL(ctx, cfg.Redis.URL)
	}
	return redisplatform.Open(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
}
