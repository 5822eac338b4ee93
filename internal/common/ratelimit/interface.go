package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a single check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request for key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// WindowCounter is the Redis operation the distributed limiter needs
type WindowCounter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
}
