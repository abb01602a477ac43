package domain

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of one Allow call. Remaining counts the
// requests left in the current window after this one.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller should wait, rounded down to whole
// seconds and never negative.
func (d RateLimitDecision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.IsZero() || !now.Before(d.ResetAt) {
		return 0
	}
	return d.ResetAt.Sub(now).Truncate(time.Second)
}

// RateLimiter counts requests per key in fixed windows. Keys are opaque to
// the limiter; the transport builds them from identity and method.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
