package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PresignTTL time.Duration
}

type Scheduler struct {
	PrimarySchedule string
	BackupSchedule  string
	Concurrency     int
	TickLockTTL     time.Duration
	TargetTimeout   time.Duration
}

type Publishing struct {
	PollInterval       time.Duration
	PollMaxAttempts    int
	RatePerMinute      int
	DefaultMaxRetries  int
	GraphBaseURL       string
	InstagramBaseURL   string
	TiktokBaseURL      string
	GoogleClientID     string
	GoogleClientSecret string
}

type Log struct {
	Level  string
	Format string
	File   string
}

type Config struct {
	Port           string
	DatabaseDriver string
	PostgresURI    string
	SQLitePath     string
	RedisURI       string
	SecretKey      string
	CookieName     string
	R2             R2
	Scheduler      Scheduler
	Publishing     Publishing
	Log            Log
}

func LoadConfig() *Config {
	return &Config{
		Port:           getEnv("PORT", "3000"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		PostgresURI:    getEnv("POSTGRES_URI", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "multipost.db"),
		RedisURI:       getEnv("REDIS_URI", ""),
		SecretKey:      getEnv("SECRET_KEY", ""),
		CookieName:     getEnv("COOKIE_NAME", "multipost_session"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PresignTTL: getDuration("R2_PRESIGN_TTL", time.Hour),
		},
		Scheduler: Scheduler{
			PrimarySchedule: getEnv("PRIMARY_SCHEDULE", "@every 1m"),
			BackupSchedule:  getEnv("BACKUP_SCHEDULE", "@every 5m"),
			Concurrency:     getInt("SCHEDULER_CONCURRENCY", 1),
			TickLockTTL:     getDuration("TICK_LOCK_TTL", 55*time.Second),
			TargetTimeout:   getDuration("TARGET_TIMEOUT", 10*time.Minute),
		},
		Publishing: Publishing{
			PollInterval:       getDuration("POLL_INTERVAL", 2*time.Second),
			PollMaxAttempts:    getInt("POLL_MAX_ATTEMPTS", 30),
			RatePerMinute:      getInt("PUBLISH_RATE_PER_MINUTE", 30),
			DefaultMaxRetries:  getInt("DEFAULT_MAX_RETRIES", 3),
			GraphBaseURL:       getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com/v18.0"),
			InstagramBaseURL:   getEnv("INSTAGRAM_GRAPH_URL", "https://graph.facebook.com/v18.0"),
			TiktokBaseURL:      getEnv("TIKTOK_API_URL", "https://open.tiktokapis.com/v2"),
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		},
		Log: Log{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			File:   getEnv("LOG_FILE", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := cast.ToIntE(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getDuration accepts Go duration strings ("90s") or plain seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if seconds, err := cast.ToInt64E(value); err == nil {
		if seconds <= 0 {
			return defaultValue
		}
		return time.Duration(seconds) * time.Second
	}
	d, err := cast.ToDurationE(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
