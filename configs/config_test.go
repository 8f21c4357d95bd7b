package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		for _, key := range []string{"PRIMARY_SCHEDULE", "BACKUP_SCHEDULE", "POLL_INTERVAL", "POLL_MAX_ATTEMPTS", "SCHEDULER_CONCURRENCY", "DATABASE_DRIVER"} {
			t.Setenv(key, "")
		}

		cfg := LoadConfig()
		assert.Equal(t, "@every 1m", cfg.Scheduler.PrimarySchedule)
		assert.Equal(t, "@every 5m", cfg.Scheduler.BackupSchedule)
		assert.Equal(t, 1, cfg.Scheduler.Concurrency)
		assert.Equal(t, 2*time.Second, cfg.Publishing.PollInterval)
		assert.Equal(t, 30, cfg.Publishing.PollMaxAttempts)
		assert.Equal(t, "postgres", cfg.DatabaseDriver)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("POLL_INTERVAL", "500ms")
		t.Setenv("TARGET_TIMEOUT", "90")
		t.Setenv("SCHEDULER_CONCURRENCY", "4")
		t.Setenv("DATABASE_DRIVER", "sqlite3")

		cfg := LoadConfig()
		assert.Equal(t, 500*time.Millisecond, cfg.Publishing.PollInterval)
		assert.Equal(t, 90*time.Second, cfg.Scheduler.TargetTimeout)
		assert.Equal(t, 4, cfg.Scheduler.Concurrency)
		assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	})

	t.Run("bare integers are seconds", func(t *testing.T) {
		t.Setenv("TARGET_TIMEOUT", "3600")
		t.Setenv("TICK_LOCK_TTL", "1800")
		t.Setenv("POLL_INTERVAL", "2")
		t.Setenv("R2_PRESIGN_TTL", "600")

		cfg := LoadConfig()
		assert.Equal(t, time.Hour, cfg.Scheduler.TargetTimeout)
		assert.Equal(t, 30*time.Minute, cfg.Scheduler.TickLockTTL)
		assert.Equal(t, 2*time.Second, cfg.Publishing.PollInterval)
		assert.Equal(t, 10*time.Minute, cfg.R2.PresignTTL)
	})

	t.Run("invalid durations fall back", func(t *testing.T) {
		t.Setenv("TARGET_TIMEOUT", "-5")
		t.Setenv("POLL_INTERVAL", "soon")

		cfg := LoadConfig()
		assert.Equal(t, 10*time.Minute, cfg.Scheduler.TargetTimeout)
		assert.Equal(t, 2*time.Second, cfg.Publishing.PollInterval)
	})

	t.Run("invalid numbers fall back", func(t *testing.T) {
		t.Setenv("POLL_MAX_ATTEMPTS", "many")
		t.Setenv("SCHEDULER_CONCURRENCY", "-2")

		cfg := LoadConfig()
		assert.Equal(t, 30, cfg.Publishing.PollMaxAttempts)
		assert.Equal(t, 1, cfg.Scheduler.Concurrency)
	})
}
