package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName   string        `env:"LOG_LEVEL" envDefault:"info"`
	DataDir        string        `env:"DATA_DIR" envDefault:"./data"`
	StorageBackend string        `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"./museum.db"`
	KeyPrefix      string        `env:"PROGRESS_KEY_PREFIX" envDefault:"museum-guide:progress"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT" envDefault:"5s"`
	EventsEnabled  bool          `env:"EVENTS_ENABLED" envDefault:"false"`
	StoreIdleTTL   time.Duration `env:"STORE_IDLE_TTL" envDefault:"15m"`
	EvictInterval  time.Duration `env:"STORE_EVICT_INTERVAL" envDefault:"1m"`

	LogLevel slog.Level
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations env tags cannot express.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis storage backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite storage backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q (supported: redis, sqlite, memory)", c.StorageBackend)
	}
	if c.EventsEnabled && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when EVENTS_ENABLED is set")
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("PERSIST_TIMEOUT must be positive")
	}
	if c.StoreIdleTTL <= 0 {
		return fmt.Errorf("STORE_IDLE_TTL must be positive")
	}
	if c.EvictInterval <= 0 {
		return fmt.Errorf("STORE_EVICT_INTERVAL must be positive")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
