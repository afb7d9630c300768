package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/open-builders/contest-bot/internal/common/config"
	"github.com/open-builders/contest-bot/internal/domain/analytics"
	"github.com/open-builders/contest-bot/internal/domain/broadcast"
	"github.com/open-builders/contest-bot/internal/domain/channel"
	dc "github.com/open-builders/contest-bot/internal/domain/contest"
	"github.com/open-builders/contest-bot/internal/domain/user"
	apphttp "github.com/open-builders/contest-bot/internal/http"
	"github.com/open-builders/contest-bot/internal/platform/db"
	"github.com/open-builders/contest-bot/internal/repository/memory"
	"github.com/open-builders/contest-bot/internal/repository/postgres"
)

// repositories is the persistence layer selected by STORAGE_DRIVER.
type repositories struct {
	contests     dc.Repository
	participants dc.ParticipantRepository
	winners      dc.WinnerRepository
	users        user.Repository
	channels     channel.Repository
	broadcasts   broadcast.Repository
	events       analytics.Repository

	// check is nil for in-memory storage.
	check apphttp.HealthCheck
	close func() error
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	if cfg.Storage.Driver == "memory" {
		store := memory.NewStore()
		return &repositories{
			contests:     store.Contests(),
			participants: store.Participants(),
			winners:      store.Winners(),
			users:        store.Users(),
			channels:     store.Channels(),
			broadcasts:   store.Broadcasts(),
			events:       store.Analytics(),
			close:        func() error { return nil },
		}, nil
	}

	conn, err := db.Open(ctx, cfg.Storage.DSN, cfg.Storage.MaxOpenConn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.Storage.AutoMigrate {
		if err := postgres.Migrate(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return postgresRepositories(conn), nil
}

func postgresRepositories(conn *sql.DB) *repositories {
	return &repositories{
		contests:     postgres.NewContestRepository(conn),
		participants: postgres.NewParticipantRepository(conn),
		winners:      postgres.NewWinnerRepository(conn),
		users:        postgres.NewUserRepository(conn),
		channels:     postgres.NewChannelRepository(conn),
		broadcasts:   postgres.NewBroadcastRepository(conn),
		events:       postgres.NewAnalyticsRepository(conn),
		check:        conn.PingContext,
		close:        conn.Close,
	}
}
