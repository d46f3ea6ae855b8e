// Package config provides configuration for the floor tracker.
// It loads from environment variables and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Selection SelectionConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
	Retention RetentionConfig
	Scheduler SchedulerConfig
	Upstream  UpstreamConfig
}

// UpstreamConfig holds the floor-price API endpoint configuration
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds sqlite configuration
type DatabaseConfig struct {
	Path string
}

// SelectionConfig holds quarterly selection configuration
type SelectionConfig struct {
	Count int // top-N collections tracked per quarter
}

// SyncConfig holds daily sync configuration
type SyncConfig struct {
	BatchSize        int           // collections synced concurrently per batch
	BatchDelay       time.Duration // pause between batches
	RetryAttempts    int           // attempts per collection before giving up
	RetryBaseDelay   time.Duration // linear backoff unit: attempt * base
	FetchTimeout     time.Duration // per upstream call
	HistoricalDays   int           // default backfill window
	BootstrapMinRows int64         // below this, schedule a one-off sync on startup
}

// RateLimitConfig holds upstream request spacing configuration
type RateLimitConfig struct {
	MinSpacing time.Duration // minimum gap between dispatched upstream calls
}

// RetentionConfig holds cleanup configuration
type RetentionConfig struct {
	PriceDays int // price records older than this are pruned
	LogDays   int // sync log rows older than this are pruned
}

// ScheduleTime is a structured trigger time. Weekday is only meaningful for
// weekly jobs.
type ScheduleTime struct {
	Hour    int
	Minute  int
	Weekday time.Weekday
}

// At formats the time the way gocron expects ("HH:MM")
func (t ScheduleTime) At() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// SchedulerConfig holds job trigger configuration
type SchedulerConfig struct {
	DailySync      ScheduleTime
	WeeklyCleanup  ScheduleTime
	BootstrapDelay time.Duration // wait before the startup one-off sync
}

// Load reads configuration from the environment, with a .env file as an
// optional source
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./floor_tracker.db"),
		},
		Selection: SelectionConfig{
			Count: getEnvAsInt("SELECTION_COUNT", 250),
		},
		Sync: SyncConfig{
			BatchSize:        getEnvAsInt("SYNC_BATCH_SIZE", 5),
			BatchDelay:       getEnvAsDuration("SYNC_BATCH_DELAY", 2*time.Second),
			RetryAttempts:    getEnvAsInt("SYNC_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:   getEnvAsDuration("SYNC_RETRY_BASE_DELAY", 5*time.Second),
			FetchTimeout:     getEnvAsDuration("SYNC_FETCH_TIMEOUT", 30*time.Second),
			HistoricalDays:   getEnvAsInt("SYNC_HISTORICAL_DAYS", 365),
			BootstrapMinRows: int64(getEnvAsInt("SYNC_BOOTSTRAP_MIN_ROWS", 100)),
		},
		RateLimit: RateLimitConfig{
			MinSpacing: getEnvAsDuration("RATE_LIMIT_MIN_SPACING", 1500*time.Millisecond),
		},
		Retention: RetentionConfig{
			PriceDays: getEnvAsInt("RETENTION_PRICE_DAYS", 365),
			LogDays:   getEnvAsInt("RETENTION_LOG_DAYS", 90),
		},
		Scheduler: SchedulerConfig{
			DailySync: ScheduleTime{
				Hour:   getEnvAsInt("SCHEDULE_DAILY_HOUR", 2),
				Minute: getEnvAsInt("SCHEDULE_DAILY_MINUTE", 0),
			},
			WeeklyCleanup: ScheduleTime{
				Hour:    getEnvAsInt("SCHEDULE_WEEKLY_HOUR", 3),
				Minute:  getEnvAsInt("SCHEDULE_WEEKLY_MINUTE", 0),
				Weekday: time.Weekday(getEnvAsInt("SCHEDULE_WEEKLY_WEEKDAY", int(time.Sunday))),
			},
			BootstrapDelay: getEnvAsDuration("SCHEDULE_BOOTSTRAP_DELAY", 10*time.Second),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("UPSTREAM_BASE_URL", "https://api.floorstats.io"),
			APIKey:  getEnv("UPSTREAM_API_KEY", ""),
		},
	}

	if cfg.Selection.Count <= 0 {
		return nil, fmt.Errorf("SELECTION_COUNT must be positive, got %d", cfg.Selection.Count)
	}
	if cfg.Sync.BatchSize <= 0 {
		return nil, fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", cfg.Sync.BatchSize)
	}
	if cfg.Sync.RetryAttempts <= 0 {
		return nil, fmt.Errorf("SYNC_RETRY_ATTEMPTS must be positive, got %d", cfg.Sync.RetryAttempts)
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
