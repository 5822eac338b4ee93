// Package sqlite opens the SQLite subscription store.
package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/storage"
)

// Config holds the SQLite settings
type Config struct {
	DatabasePath string
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.ConfigError("database path is required")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "./stripe_webhook_router.db",
	}
}

var dialect = storage.Dialect{Name: "sqlite"}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL UNIQUE,
		expires_at INTEGER NOT NULL,
		properties TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_expires_at ON subscriptions (expires_at)`,
}

// Open opens the database at config.DatabasePath and applies the schema
func Open(ctx context.Context, config *Config, secrets *storage.SecretCodec) (*storage.SQLStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000")
	if err != nil {
		return nil, errors.ConnectionError("failed to open database", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.ConnectionError("failed to ping database", err)
	}

	if err := storage.Migrate(ctx, db, migrations); err != nil {
		db.Close()
		return nil, err
	}

	return storage.NewSQLStore(db, dialect, secrets), nil
}
