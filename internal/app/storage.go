package app

import (
	"context"
	"fmt"
	"strconv"

	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/storage"
	"stripe-webhook-router/internal/storage/postgres"
	"stripe-webhook-router/internal/storage/sqlite"
	"stripe-webhook-router/internal/subscription"
)

func (app *App) initializeStorage(ctx context.Context) error {
	secrets, err := storage.NewSecretCodec(app.Config.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize secret encryption: %w", err)
	}
	if secrets.Enabled() {
		app.Logger.Info("Subscription secret encryption enabled")
	}

	var store subscription.Store
	switch app.Config.DatabaseType {
	case "memory":
		app.Logger.Warn("Database: in-memory, subscriptions are lost on restart")
		store = subscription.NewMemoryStore()

	case "postgres", "postgresql":
		pgConfig, err := app.postgresConfig()
		if err != nil {
			return err
		}
		app.Logger.Info("Database: PostgreSQL",
			logging.String("host", pgConfig.Host),
			logging.Int("port", pgConfig.Port),
			logging.String("database", pgConfig.Database),
		)
		store, err = postgres.Open(ctx, pgConfig, secrets)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}

	default:
		app.Logger.Info("Database: SQLite", logging.String("path", app.Config.DatabasePath))
		store, err = sqlite.Open(ctx, &sqlite.Config{DatabasePath: app.Config.DatabasePath}, secrets)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	app.Store = store
	app.Subscriptions = subscription.NewManager(store, app.Config.SubscriptionTTL)
	return nil
}

func (app *App) postgresConfig() (*postgres.Config, error) {
	if app.Config.PostgresURL != "" {
		return postgres.NewConfigFromURL(app.Config.PostgresURL)
	}
	port, err := strconv.Atoi(app.Config.PostgresPort)
	if err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_PORT: %w", err)
	}
	return &postgres.Config{
		Host:     app.Config.PostgresHost,
		Port:     port,
		Database: app.Config.PostgresDB,
		Username: app.Config.PostgresUser,
		Password: app.Config.PostgresPassword,
		SSLMode:  app.Config.PostgresSSLMode,
	}, nil
}
