package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"stripe-webhook-router/internal/handlers"
	"stripe-webhook-router/internal/server"
)

// Handler builds the HTTP handler with all routes configured
func (app *App) Handler() http.Handler {
	opts := []handlers.Option{
		handlers.WithMaxBodySize(app.Config.MaxBodySize),
		handlers.WithHealthCheck("store", app.Store.Health),
	}
	if app.RedisClient != nil {
		opts = append(opts, handlers.WithHealthCheck("redis", app.RedisClient.Health))
	}
	if app.Forwarder != nil {
		opts = append(opts, handlers.WithHealthCheck("broker", app.Forwarder.Health))
	}

	h := handlers.New(app.Subscriptions, app.Dispatcher, app.Runner, opts...)

	var authMiddleware func(http.Handler) http.Handler
	if app.Auth != nil {
		authMiddleware = app.Auth.RequireAuth
	}

	router := mux.NewRouter()
	SetupRoutes(router, h, authMiddleware, app.Limiter)
	return router
}

// NewServer creates the HTTP server for the application
func (app *App) NewServer() *server.Server {
	return server.New(app.Handler(), app.Config.Port, app.Config.TLSCertFile, app.Config.TLSKeyFile)
}
