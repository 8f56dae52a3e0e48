// Package config loads DevDiary configuration from defaults, an optional
// config file, a .env file and DEVDIARY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kittclouds/devdiary/internal/logger"
)

// Storage backends
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)

// Sync modes
const (
	SyncNone  = "none"
	SyncLocal = "local"
	SyncRedis = "redis"
	SyncWatch = "watch"
)

// DefaultStorageKey is the single well-known key holding the aggregate.
const DefaultStorageKey = "devdiary-data"

// Config holds all configuration for the application
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	Sync    SyncConfig    `mapstructure:"sync"`
	AI      AIConfig      `mapstructure:"ai"`
	Logger  logger.Config `mapstructure:"logger"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Timezone string `mapstructure:"timezone"` // empty means the device-local zone
}

// StorageConfig selects where the aggregate is persisted.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	Key       string `mapstructure:"key"`
	SQLiteDSN string `mapstructure:"sqlite_dsn"`
}

// SyncConfig selects the change-notification channel between instances.
type SyncConfig struct {
	Mode          string `mapstructure:"mode"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// AIConfig holds the text-generation endpoint settings.
type AIConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	Model               string        `mapstructure:"model"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ContextBudgetTokens int           `mapstructure:"context_budget_tokens"`
	ContextLimit        int           `mapstructure:"context_limit"`
}

// Load loads configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("DEVDIARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "devdiary")
	v.SetDefault("app.timezone", "")

	v.SetDefault("storage.backend", BackendFS)
	v.SetDefault("storage.dir", defaultDataDir())
	v.SetDefault("storage.key", DefaultStorageKey)
	v.SetDefault("storage.sqlite_dsn", "")

	v.SetDefault("sync.mode", SyncWatch)
	v.SetDefault("sync.redis_addr", "localhost:6379")
	v.SetDefault("sync.redis_password", "")
	v.SetDefault("sync.redis_db", 0)

	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.context_budget_tokens", 8000)
	v.SetDefault("ai.context_limit", 0)

	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stderr")
}

func bindEnvVars(v *viper.Viper) {
	// Storage
	_ = v.BindEnv("storage.backend", "DEVDIARY_STORAGE_BACKEND")
	_ = v.BindEnv("storage.dir", "DEVDIARY_DATA_DIR")
	_ = v.BindEnv("storage.key", "DEVDIARY_STORAGE_KEY")
	_ = v.BindEnv("storage.sqlite_dsn", "DEVDIARY_SQLITE_DSN")

	// Sync
	_ = v.BindEnv("sync.mode", "DEVDIARY_SYNC_MODE")
	_ = v.BindEnv("sync.redis_addr", "DEVDIARY_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("sync.redis_password", "DEVDIARY_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("sync.redis_db", "DEVDIARY_REDIS_DB")

	// AI
	_ = v.BindEnv("ai.base_url", "DEVDIARY_AI_BASE_URL")
	_ = v.BindEnv("ai.model", "DEVDIARY_AI_MODEL")
	_ = v.BindEnv("ai.timeout", "DEVDIARY_AI_TIMEOUT")

	// Logger
	_ = v.BindEnv("logger.level", "DEVDIARY_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("logger.format", "DEVDIARY_LOG_FORMAT")
}

// Validate checks the configuration for unsupported values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFS:
		if c.Storage.Dir == "" {
			return errors.New("storage dir is required for the fs backend")
		}
	case BackendSQLite:
		if c.Storage.SQLiteDSN == "" && c.Storage.Dir == "" {
			return errors.New("storage dir or sqlite_dsn is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if strings.TrimSpace(c.Storage.Key) == "" {
		return errors.New("storage key must not be empty")
	}

	switch c.Sync.Mode {
	case SyncNone, SyncLocal, SyncWatch:
	case SyncRedis:
		if c.Sync.RedisAddr == "" {
			return errors.New("redis_addr is required for redis sync")
		}
	default:
		return fmt.Errorf("unknown sync mode %q", c.Sync.Mode)
	}

	if c.Sync.Mode == SyncWatch && c.Storage.Backend != BackendFS {
		return errors.New("watch sync requires the fs storage backend")
	}

	if c.AI.Timeout <= 0 {
		return errors.New("ai timeout must be positive")
	}

	if c.App.Timezone != "" {
		if _, err := time.LoadLocation(c.App.Timezone); err != nil {
			return fmt.Errorf("invalid timezone: %w", err)
		}
	}

	return nil
}

// Location returns the calendar zone used for "today" queries.
func (c *AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// DSN returns the SQLite data source, defaulting to a file in the data dir.
func (c *StorageConfig) DSN() string {
	if c.SQLiteDSN != "" {
		return c.SQLiteDSN
	}
	return "file:" + filepath.Join(c.Dir, "devdiary.db")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "devdiary")
	}
	return ".devdiary"
}
