package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/subscription"
)

var errNoKey = errors.ConfigError("encrypted subscription secrets found but CONFIG_ENCRYPTION_KEY is not set")

// Dialect captures the differences between supported SQL databases
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of '?'
	Numbered bool
}

// SQLStore implements subscription.Store over database/sql
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	secrets *SecretCodec
}

// NewSQLStore wraps an open database. The schema must already exist.
func NewSQLStore(db *sql.DB, dialect Dialect, secrets *SecretCodec) *SQLStore {
	if secrets == nil {
		secrets = &SecretCodec{}
	}
	return &SQLStore{db: db, dialect: dialect, secrets: secrets}
}

// Migrate runs schema statements in order
func Migrate(ctx context.Context, db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.InternalError("failed to migrate database", err)
		}
	}
	return nil
}

// Timestamps are stored as unix milliseconds so both backends compare them the same way.
const selectColumns = `SELECT id, endpoint, expires_at, properties, created_at, updated_at FROM subscriptions`

func (s *SQLStore) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE id = ?`), id)
	return s.scanOne(row)
}

func (s *SQLStore) GetByEndpoint(ctx context.Context, endpoint string) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE endpoint = ?`), endpoint)
	return s.scanOne(row)
}

func (s *SQLStore) List(ctx context.Context) ([]*subscription.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at`)
	if err != nil {
		return nil, errors.InternalError("failed to list subscriptions", err)
	}
	return s.scanAll(rows)
}

func (s *SQLStore) ListExpiring(ctx context.Context, after, before time.Time) ([]*subscription.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(selectColumns+` WHERE expires_at > ? AND expires_at < ? ORDER BY expires_at`),
		after.UnixMilli(), before.UnixMilli(),
	)
	if err != nil {
		return nil, errors.InternalError("failed to list expiring subscriptions", err)
	}
	return s.scanAll(rows)
}

func (s *SQLStore) Save(ctx context.Context, sub *subscription.Subscription) error {
	existing, err := s.GetByEndpoint(ctx, sub.Endpoint)
	if err == nil && existing.ID != sub.ID {
		return errors.ValidationError("endpoint already in use")
	}
	if err != nil && !errors.IsType(err, errors.ErrTypeNotFound) {
		return err
	}

	sealed, err := s.secrets.Seal(sub.Properties)
	if err != nil {
		return err
	}
	props, err := json.Marshal(sealed)
	if err != nil {
		return errors.InternalError("failed to encode subscription properties", err)
	}

	query := s.rebind(`INSERT INTO subscriptions (id, endpoint, expires_at, properties, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			endpoint = excluded.endpoint,
			expires_at = excluded.expires_at,
			properties = excluded.properties,
			updated_at = excluded.updated_at`)

	_, err = s.db.ExecContext(ctx, query,
		sub.ID,
		sub.Endpoint,
		sub.ExpiresAt.UnixMilli(),
		string(props),
		sub.CreatedAt.UnixMilli(),
		sub.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.InternalError("failed to save subscription", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM subscriptions WHERE id = ?`), id)
	if err != nil {
		return errors.InternalError("failed to delete subscription", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NotFoundError("subscription")
	}
	return nil
}

func (s *SQLStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *SQLStore) scan(row scanner) (*subscription.Subscription, error) {
	var (
		sub                             subscription.Subscription
		props                           string
		expiresAt, createdAt, updatedAt int64
	)
	if err := row.Scan(&sub.ID, &sub.Endpoint, &expiresAt, &props, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(props), &raw); err != nil {
		return nil, errors.InternalError("failed to decode subscription properties", err)
	}
	opened, err := s.secrets.Open(raw)
	if err != nil {
		return nil, err
	}

	sub.Properties = opened
	sub.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	sub.CreatedAt = time.UnixMilli(createdAt).UTC()
	sub.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &sub, nil
}

func (s *SQLStore) scanOne(row *sql.Row) (*subscription.Subscription, error) {
	sub, err := s.scan(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError("subscription")
	}
	if err != nil {
		return nil, asAppError(err)
	}
	return sub, nil
}

func (s *SQLStore) scanAll(rows *sql.Rows) ([]*subscription.Subscription, error) {
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := s.scan(rows)
		if err != nil {
			return nil, asAppError(err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalError("failed to iterate subscriptions", err)
	}
	return subs, nil
}

func asAppError(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.InternalError("failed to load subscription", err)
}
