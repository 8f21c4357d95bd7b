package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/maheshrc27/multipost/configs"
	"github.com/maheshrc27/multipost/internal/service"
	"github.com/robfig/cron/v3"
)

const (
	tickLockKey        = "multipost:scheduler:tick"
	defaultTickLockTTL = 55 * time.Second
)

// PublishScheduler fires the due-post scan on a primary and a backup cadence.
type PublishScheduler struct {
	ctx        context.Context
	publishing service.PublishingService
	locker     TickLocker
	lockTTL    time.Duration
	primary    string
	backup     string
	cron       *cron.Cron
	running    sync.WaitGroup
}

// NewPublishScheduler builds the scheduler. Ticks run under ctx, so cancelling
// it interrupts in-flight publishing. locker may be nil on single instance
// deployments.
func NewPublishScheduler(ctx context.Context, publishing service.PublishingService, cfg config.Scheduler, locker TickLocker) *PublishScheduler {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn))

	lockTTL := cfg.TickLockTTL
	if lockTTL <= 0 {
		lockTTL = defaultTickLockTTL
	}

	return &PublishScheduler{
		ctx:        ctx,
		publishing: publishing,
		locker:     locker,
		lockTTL:    lockTTL,
		primary:    cfg.PrimarySchedule,
		backup:     cfg.BackupSchedule,
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
	}
}

func (s *PublishScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.primary, func() { s.Tick(s.ctx, "primary") }); err != nil {
		return fmt.Errorf("invalid primary schedule %q: %w", s.primary, err)
	}
	if s.backup != "" {
		if _, err := s.cron.AddFunc(s.backup, func() { s.Tick(s.ctx, "backup") }); err != nil {
			return fmt.Errorf("invalid backup schedule %q: %w", s.backup, err)
		}
	}
	s.cron.Start()
	slog.Info("publish scheduler started", "primary", s.primary, "backup", s.backup)
	return nil
}

// Stop halts the cadences. The returned context is done once running ticks finish.
func (s *PublishScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Shutdown stops the cadences and gives running ticks grace to finish. Ticks
// still running after that are interrupted through cancel, which must cancel
// the scheduler's context, and get up to drain to record their outcomes.
// It reports whether every tick finished.
func (s *PublishScheduler) Shutdown(cancel context.CancelFunc, grace, drain time.Duration) bool {
	stopped := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.running.Wait()
		close(done)
	}()

	if waitFor(done, grace) {
		cancel()
		return true
	}

	slog.Warn("publish ticks still running, interrupting them", "grace", grace)
	cancel()
	if waitFor(done, drain) {
		return true
	}
	slog.Error("publish ticks did not finish after interruption", "drain", drain)
	return false
}

func waitFor(done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Tick runs one scan of due posts. Failures are logged and never escape.
func (s *PublishScheduler) Tick(ctx context.Context, cadence string) {
	s.running.Add(1)
	defer s.running.Done()

	start := time.Now()
	log := slog.With("cadence", cadence)

	if s.locker != nil {
		release, err := s.locker.Obtain(ctx, tickLockKey, s.lockTTL)
		if errors.Is(err, ErrTickLocked) {
			log.Info("tick skipped, another tick holds the lock")
			return
		}
		if err != nil {
			log.Error("obtain tick lock", "error", err)
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release tick lock", "error", err)
			}
		}()
	}

	processed, err := s.publishing.ProcessDuePosts(ctx)
	if err != nil {
		log.Error("process due posts", "error", err)
		return
	}
	if processed > 0 {
		log.Info("tick finished", "posts", processed, "took", time.Since(start))
	}
}
