package ratelimit

import (
	"context"

	"stripe-webhook-router/internal/common/errors"
)

// DistributedLimiter counts requests per key in a Redis sliding window
type DistributedLimiter struct {
	config  Config
	counter WindowCounter
}

func NewDistributedLimiter(config Config, counter WindowCounter) (*DistributedLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, errors.ConfigError("redis client is required for distributed rate limiter")
	}
	return &DistributedLimiter{config: config, counter: counter}, nil
}

func (l *DistributedLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !l.config.Enabled {
		return Decision{Allowed: true}, nil
	}

	limit := l.config.WindowLimit()
	allowed, count, err := l.counter.CheckRateLimit(ctx, l.config.KeyPrefix+key, limit, l.config.Window)
	if err != nil {
		return Decision{Allowed: true, Limit: limit}, errors.ConnectionError("rate limit check failed", err)
	}

	decision := Decision{Allowed: allowed, Limit: limit}
	if allowed {
		decision.Remaining = limit - count - 1
	} else {
		decision.RetryAfter = l.config.Window
	}
	return decision, nil
}
