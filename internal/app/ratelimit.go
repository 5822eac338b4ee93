package app

import (
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/common/ratelimit"
)

// initializeRateLimiter limits webhook ingress per endpoint. Limits are
// shared across instances when Redis is available.
func (app *App) initializeRateLimiter() error {
	if !app.Config.RateLimitEnabled {
		app.Logger.Info("Rate Limiting: Disabled")
		return nil
	}

	rateLimitConfig := ratelimit.Config{
		Enabled:           true,
		RequestsPerSecond: app.Config.RateLimitRPS,
		BurstSize:         app.Config.RateLimitBurst,
		Type:              ratelimit.BackendLocal,
		KeyPrefix:         "ratelimit:webhook:",
	}

	var counter ratelimit.WindowCounter
	if app.RedisClient != nil {
		rateLimitConfig.Type = ratelimit.BackendDistributed
		counter = app.RedisClient
	}

	limiter, err := ratelimit.New(rateLimitConfig, counter)
	if err != nil {
		return err
	}

	app.Limiter = limiter
	app.Logger.Info("Rate Limiting: Enabled",
		logging.String("backend", string(rateLimitConfig.Type)),
		logging.Any("rps", rateLimitConfig.RequestsPerSecond),
		logging.Int("burst", rateLimitConfig.BurstSize),
	)
	return nil
}
