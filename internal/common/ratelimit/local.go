package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// LocalLimiter keeps one token bucket per key in memory
type LocalLimiter struct {
	mu          sync.Mutex
	config      Config
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
	now         func() time.Time
}

func NewLocalLimiter(config Config) (*LocalLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &LocalLimiter{
		config:      config,
		limiters:    make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}, nil
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if !l.config.Enabled {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	limiter := l.limiterFor(key, now)

	reservation := limiter.ReserveN(now, 1)
	decision := Decision{Limit: l.config.BurstSize}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		decision.RetryAfter = delay
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = int(math.Floor(limiter.TokensAt(now)))
	return decision, nil
}

func (l *LocalLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) > l.config.CleanupPeriod {
		for k, entry := range l.limiters {
			if now.Sub(entry.lastUsed) > l.config.CleanupPeriod {
				delete(l.limiters, k)
			}
		}
		l.lastCleanup = now
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize),
		}
		l.limiters[key] = entry
	}
	entry.lastUsed = now
	return entry.limiter
}

// Keys returns the number of tracked keys
func (l *LocalLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
