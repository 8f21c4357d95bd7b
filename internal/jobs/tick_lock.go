package job

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrTickLocked is returned when another process holds the tick lock.
var ErrTickLocked = errors.New("scheduler tick already running")

// TickLocker guards a scheduler tick so that overlapping cadences or replicas
// do not scan the same due posts at once.
type TickLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type redisTickLocker struct {
	client *redislock.Client
}

func NewRedisTickLocker(rdb *redis.Client) TickLocker {
	return &redisTickLocker{client: redislock.New(rdb)}
}

func (l *redisTickLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrTickLocked
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
