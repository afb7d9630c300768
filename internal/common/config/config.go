package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug     bool   `env:"DEBUG" envDefault:"false"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`

		// Host shown in the swagger UI; empty means the serving host.
		SwaggerHost string `env:"SWAGGER_HOST"`
	}

	Storage struct {
		// postgres or memory
		Driver      string `env:"STORAGE_DRIVER" envDefault:"postgres"`
		DSN         string `env:"DATABASE_URL"`
		AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
		MaxOpenConn int    `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	}

	Redis struct {
		// URL takes precedence over host, port, password and db when set.
		URL      string `env:"REDIS_URL"`
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Telegram struct {
		BotToken         string        `env:"BOT_TOKEN,required,notEmpty"`
		Debug            bool          `env:"TELEGRAM_DEBUG" envDefault:"false"`
		AdminIDs         []int64       `env:"ADMIN_IDS" envSeparator:","`
		SponsorChannelID int64         `env:"SPONSOR_CHANNEL_ID" envDefault:"0"`
		InitDataTTL      time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
	}

	Contest struct {
		MaxDurationDays   int  `env:"MAX_CONTEST_DURATION_DAYS" envDefault:"30"`
		MaxWinners        int  `env:"MAX_WINNERS_COUNT" envDefault:"100"`
		MaxParticipants   int  `env:"MAX_PARTICIPANTS" envDefault:"10000"`
		RequireOwnChannel bool `env:"REQUIRE_CONTEST_CHANNEL" envDefault:"true"`

		CountCacheTTL time.Duration `env:"PARTICIPANT_COUNT_CACHE_TTL" envDefault:"5m"`
	}

	Scheduler struct {
		TickInterval         time.Duration `env:"SCHEDULER_TICK_INTERVAL" envDefault:"30s"`
		LockTTL              time.Duration `env:"SCHEDULER_LOCK_TTL" envDefault:"25s"`
		ChannelStatsInterval time.Duration `env:"CHANNEL_STATS_INTERVAL" envDefault:"1h"`
		AnalyticsRetention   time.Duration `env:"ANALYTICS_RETENTION" envDefault:"2160h"`
	}

	Subscription struct {
		CacheTTL time.Duration `env:"SUBSCRIPTION_CACHE_TTL" envDefault:"5m"`
		Timeout  time.Duration `env:"MEMBERSHIP_TIMEOUT" envDefault:"5s"`
	}

	Cache struct {
		UserTTL     time.Duration `env:"USER_CACHE_TTL" envDefault:"10m"`
		ResponseTTL time.Duration `env:"HTTP_CACHE_TTL" envDefault:"5s"`
	}

	Notifications struct {
		Async         bool `env:"NOTIFY_ASYNC" envDefault:"true"`
		BroadcastRate int  `env:"BROADCAST_RATE" envDefault:"25"`
	}
}

// RedisAddr returns host:port for go-redis.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// MaxDuration is the longest allowed distance between creation and end time.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Contest.MaxDurationDays) * 24 * time.Hour
}

// IsAdmin reports whether the Telegram user id is listed in ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Parse reads the environment into a Config.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.Storage.Driver != "postgres" && cfg.Storage.Driver != "memory" {
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == "postgres" && cfg.Storage.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
	}
	return cfg, nil
}

// Load reads an optional .env file and the environment. It panics on invalid config.
func Load() *Config {
	// A missing .env is fine: production sets variables directly.
	_ = godotenv.Load()

	cfg, err := Parse()
	if err != nil {
		panic(err)
	}
	return cfg
}
