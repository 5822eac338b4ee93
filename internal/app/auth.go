package app

import (
	"stripe-webhook-router/internal/auth"
)

func (app *App) initializeAuth() error {
	if !app.Config.AdminEnabled() {
		app.Logger.Info("Admin API disabled (no ADMIN_JWT_SECRET)")
		return nil
	}

	var revoked auth.RevocationStore
	if app.RedisClient != nil {
		revoked = app.RedisClient
	}

	authInstance, err := auth.New(app.Config.AdminJWTSecret, revoked)
	if err != nil {
		return err
	}
	app.Auth = authInstance
	return nil
}
