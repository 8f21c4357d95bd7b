package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/multipost/internal/models"
	"golang.org/x/time/rate"
)

type rateLimited struct {
	Publisher
	limiter *rate.Limiter
}

// WithRateLimit throttles every call to p to perMinute calls, with bursts of one.
// A non-positive perMinute returns p unchanged.
func WithRateLimit(p Publisher, perMinute int) Publisher {
	if perMinute <= 0 {
		return p
	}
	return &rateLimited{
		Publisher: p,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (r *rateLimited) Publish(ctx context.Context, req Request) Result {
	if err := r.limiter.Wait(ctx); err != nil {
		return failure(r.Platform(), fmt.Errorf("rate limit wait: %w", err))
	}
	return r.Publisher.Publish(ctx, req)
}

func (r *rateLimited) DeletePost(ctx context.Context, externalID string, creds models.Credentials) bool {
	if err := r.limiter.Wait(ctx); err != nil {
		slog.Info(err.Error())
		return false
	}
	return r.Publisher.DeletePost(ctx, externalID, creds)
}

func (r *rateLimited) UpdateCaption(ctx context.Context, externalID, caption string, creds models.Credentials) bool {
	if err := r.limiter.Wait(ctx); err != nil {
		slog.Info(err.Error())
		return false
	}
	return r.Publisher.UpdateCaption(ctx, externalID, caption, creds)
}
