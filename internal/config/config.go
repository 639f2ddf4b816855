// Package config loads runtime settings from the environment and an
// optional .env file. Every key is read with the CHAPTERWISE_ prefix.
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
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	envPrefix = "CHAPTERWISE"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendFile     = "file"
)

var ErrUnknownBackend = errors.New("unknown backend")

type Config struct {
	Env     string
	UserID  string
	Backend string
	DataDir string

	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Sync     SyncConfig
	Presets  PresetConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

type SQLiteConfig struct {
	Path string
}

type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type SyncConfig struct {
	WriteDelay     time.Duration
	LatencyBuffer  time.Duration
	ResyncInterval time.Duration
	CacheDir       string
}

type PresetConfig struct {
	Dir      string
	CacheTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Addr string
}

// Load reads .env (when present in the working directory) and the process
// environment. Explicit environment variables win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	setDefaults(v, filepath.Join(home, ".chapterwise"))

	dataDir := v.GetString("DATA_DIR")
	cfg := &Config{
		Env:     v.GetString("ENV"),
		UserID:  v.GetString("USER"),
		Backend: strings.ToLower(v.GetString("BACKEND")),
		DataDir: dataDir,
		SQLite: SQLiteConfig{
			Path: orDefault(v.GetString("SQLITE_PATH"), filepath.Join(dataDir, "chapterwise.db")),
		},
		Postgres: PostgresConfig{
			DSN:          v.GetString("POSTGRES_DSN"),
			MaxOpenConns: v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_PREFIX"),
		},
		Sync: SyncConfig{
			WriteDelay:     parseDuration(v.GetString("WRITE_DELAY"), 500*time.Millisecond),
			LatencyBuffer:  parseDuration(v.GetString("LATENCY_BUFFER"), 300*time.Millisecond),
			ResyncInterval: parseDuration(v.GetString("RESYNC_INTERVAL"), 30*time.Second),
			CacheDir:       orDefault(v.GetString("CACHE_DIR"), filepath.Join(dataDir, "cache")),
		},
		Presets: PresetConfig{
			Dir:      orDefault(v.GetString("PRESET_DIR"), filepath.Join(dataDir, "presets")),
			CacheTTL: parseDuration(v.GetString("PRESET_CACHE_TTL"), 5*time.Minute),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("METRICS_ADDR"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("USER", "local")
	v.SetDefault("BACKEND", BackendSQLite)
	v.SetDefault("DATA_DIR", dataDir)
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 10)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 5)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "chapterwise")
	v.SetDefault("WRITE_DELAY", "500ms")
	v.SetDefault("LATENCY_BUFFER", "300ms")
	v.SetDefault("RESYNC_INTERVAL", "30s")
	v.SetDefault("PRESET_CACHE_TTL", "5m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Validate checks the backend selection and the settings it needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendSQLite, BackendRedis, BackendFile:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres backend requires CHAPTERWISE_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend))
	}
	if strings.TrimSpace(c.UserID) == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if c.Sync.WriteDelay <= 0 {
		errs = append(errs, errors.New("write delay must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
