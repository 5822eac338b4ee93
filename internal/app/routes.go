package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"stripe-webhook-router/internal/common/ratelimit"
	"stripe-webhook-router/internal/handlers"
	"stripe-webhook-router/internal/middleware"
)

// endpointKey rate limits webhook ingress per subscription endpoint
func endpointKey(r *http.Request) string {
	return "endpoint:" + mux.Vars(r)["endpoint"]
}

// SetupRoutes configures all HTTP routes for the application. authMiddleware
// nil leaves the admin API unmounted.
func SetupRoutes(router *mux.Router, h *handlers.Handlers, authMiddleware func(http.Handler) http.Handler, rateLimiter ratelimit.Limiter) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)

	// Health check (no auth required)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Webhook ingress, rate limited per endpoint
	webhook := http.Handler(http.HandlerFunc(h.HandleWebhook))
	if rateLimiter != nil {
		webhook = middleware.RateLimit(rateLimiter, endpointKey)(webhook)
	}
	router.Handle("/webhooks/{endpoint}", webhook).Methods("POST")

	if authMiddleware == nil {
		return
	}

	// Subscription management (protected)
	api := router.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)
	api.HandleFunc("/subscriptions", h.CreateSubscription).Methods("POST")
	api.HandleFunc("/subscriptions", h.ListSubscriptions).Methods("GET")
	api.HandleFunc("/subscriptions/{id}", h.GetSubscription).Methods("GET")
	api.HandleFunc("/subscriptions/{id}/refresh", h.RefreshSubscription).Methods("POST")
	api.HandleFunc("/subscriptions/{id}", h.DeleteSubscription).Methods("DELETE")
}
