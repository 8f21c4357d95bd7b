package publisher

import (
	"context"
	"errors"
	"time"
)

var errPollExhausted = errors.New("poll attempts exhausted")

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 30
)

// Poller repeats a status check at a fixed interval. The attempt ceiling and
// the context deadline both bound the loop.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultPoller() Poller {
	return Poller{Interval: DefaultPollInterval, MaxAttempts: DefaultPollMaxAttempts}
}

// Poll runs check until it reports done or fails. After a check that is not
// done it waits Interval before the next one. It returns errPollExhausted once
// MaxAttempts checks have run.
func (p Poller) Poll(ctx context.Context, check func(ctx context.Context) (bool, error)) error {
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return errPollExhausted
}

func (p Poller) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultPollMaxAttempts
	}
	return p.MaxAttempts
}
