package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/contests?sslmode=disable")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, 5*time.Minute, cfg.Subscription.CacheTTL)
	assert.Equal(t, 100, cfg.Contest.MaxWinners)
	assert.Equal(t, 10000, cfg.Contest.MaxParticipants)
	assert.Equal(t, 30*24*time.Hour, cfg.MaxDuration())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, 10*time.Minute, cfg.Cache.UserTTL)
	assert.Equal(t, 5*time.Second, cfg.Cache.ResponseTTL)
	assert.Empty(t, cfg.Redis.URL)
}

func TestParseAdminIDs(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ADMIN_IDS", "10,20")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 20}, cfg.Telegram.AdminIDs)
	assert.True(t, cfg.IsAdmin(20))
	assert.False(t, cfg.IsAdmin(30))
}

func TestParseRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("STORAGE_DRIVER", "memory")

	_, err := Parse()
	assert.Error(t, err)
}

func TestParseRejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Parse()
	assert.Error(t, err)
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := Parse()
	assert.Error(t, err)
}
