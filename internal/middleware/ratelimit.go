package middleware

import (
	"math"
	"net/http"
	"strconv"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/common/ratelimit"
)

// KeyFunc derives the rate limit key for a request
type KeyFunc func(r *http.Request) string

// RateLimit rejects requests over the limit for their key with 429. Limiter
// errors are logged and the request is let through.
func RateLimit(limiter ratelimit.Limiter, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logging.WithContext(r.Context()).Warn("rate limit check failed",
					logging.String("key", key),
					logging.Err(err),
				)
			}

			if decision.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
			}

			if !decision.Allowed {
				retry := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				WriteError(w, errors.RateLimitError(key))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
