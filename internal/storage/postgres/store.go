// Package postgres opens the PostgreSQL subscription store through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/storage"
)

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.ConfigError("PostgreSQL host is required")
	}
	if c.Port <= 0 {
		c.Port = 5432
	}
	if c.Database == "" {
		return errors.ConfigError("PostgreSQL database name is required")
	}
	if c.Username == "" {
		return errors.ConfigError("PostgreSQL username is required")
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
	return nil
}

// DSN renders a postgres:// URL so passwords with special characters survive
func (c *Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// NewConfigFromURL parses a postgres:// connection URL
func NewConfigFromURL(connStr string) (*Config, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, errors.ConfigError("invalid PostgreSQL URL")
	}

	config := &Config{
		Host:    u.Hostname(),
		Port:    5432,
		SSLMode: "prefer",
	}
	if len(u.Path) > 1 {
		config.Database = u.Path[1:]
	}
	if u.User != nil {
		config.Username = u.User.Username()
		if password, ok := u.User.Password(); ok {
			config.Password = password
		}
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.ConfigError("invalid PostgreSQL port")
		}
		config.Port = port
	}
	if sslMode := u.Query().Get("sslmode"); sslMode != "" {
		config.SSLMode = sslMode
	}
	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "stripe_webhook_router",
		Username: "postgres",
		SSLMode:  "prefer",
	}
}

var dialect = storage.Dialect{Name: "postgres", Numbered: true}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL UNIQUE,
		expires_at BIGINT NOT NULL,
		properties TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_expires_at ON subscriptions (expires_at)`,
}

// Open connects, applies the schema and returns the store
func Open(ctx context.Context, config *Config, secrets *storage.SecretCodec) (*storage.SQLStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", config.DSN())
	if err != nil {
		return nil, errors.ConnectionError("failed to open database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
