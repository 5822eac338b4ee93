package main

import (
	"log"

	"stripe-webhook-router/internal/app"
)

// @title Stripe Webhook Router API
// @description Receives signed Stripe webhooks, resolves thin events and routes them to broker channels.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
