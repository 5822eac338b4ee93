package app

import (
	"context"

	"stripe-webhook-router/internal/auth"
	"stripe-webhook-router/internal/brokers"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/common/ratelimit"
	"stripe-webhook-router/internal/config"
	"stripe-webhook-router/internal/dispatch"
	"stripe-webhook-router/internal/events"
	"stripe-webhook-router/internal/forwarder"
	"stripe-webhook-router/internal/redis"
	"stripe-webhook-router/internal/signature"
	"stripe-webhook-router/internal/subscription"
)

// App holds all the application dependencies
type App struct {
	Config        *config.Config
	Store         subscription.Store
	Subscriptions *subscription.Manager
	Refresher     *subscription.Refresher
	RedisClient   *redis.Client
	Verifier      *signature.Verifier
	Dispatcher    *dispatch.Dispatcher
	Registry      *events.Registry
	Runner        *events.Runner
	Broker        brokers.Broker
	Forwarder     *forwarder.Forwarder
	Auth          *auth.Auth
	Limiter       ratelimit.Limiter
	Logger        logging.Logger
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.initializeRedis(); err != nil {
		// Redis is optional, just log the error
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
	}

	if err := app.initializeStorage(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeDispatch(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeBroker(); err != nil {
		app.Cleanup()
		return nil, err
	}
	app.initializeRunner()

	if err := app.initializeAuth(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeRateLimiter(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeRefresher(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Refresher != nil {
		app.Refresher.Stop()
	}
	if app.Forwarder != nil {
		if err := app.Forwarder.Close(); err != nil {
			app.Logger.Warn("Error closing broker", logging.Err(err))
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn("Error closing store", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		_ = app.RedisClient.Close()
	}
}
