// Package subscription models webhook subscriptions and their lifecycle:
// creation with credential validation, periodic refresh and deletion.
package subscription

import (
	"context"
	"time"
)

// Property keys the ingestion pipeline reads
const (
	PropertyEndpointSecret = "endpoint_secret"
	PropertyAPIKey         = "api_key"
	PropertyExternalID     = "external_id"
	PropertyEvents         = "events"
)

// SecretProperties are never returned by the admin API and are encrypted at rest
var SecretProperties = []string{PropertyEndpointSecret, PropertyAPIKey}

// Subscription binds an inbound endpoint to its signing secret and options
type Subscription struct {
	ID         string                 `json:"id"`
	Endpoint   string                 `json:"endpoint"`
	ExpiresAt  time.Time              `json:"expires_at"`
	Properties map[string]interface{} `json:"properties"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// StringProperty returns a string property or "" when absent or not a string
func (s *Subscription) StringProperty(key string) string {
	if s == nil || s.Properties == nil {
		return ""
	}
	v, _ := s.Properties[key].(string)
	return v
}

// Events returns the event types the subscription asked for
func (s *Subscription) Events() []string {
	if s == nil || s.Properties == nil {
		return nil
	}
	switch v := s.Properties[PropertyEvents].(type) {
	case []string:
		return v
	case []interface{}:
		events := make([]string, 0, len(v))
		for _, e := range v {
			if str, ok := e.(string); ok {
				events = append(events, str)
			}
		}
		return events
	}
	return nil
}

// Expired reports whether the subscription has lapsed at now
func (s *Subscription) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Redacted returns a copy with secret properties replaced by their length
func (s *Subscription) Redacted() *Subscription {
	out := *s
	out.Properties = make(map[string]interface{}, len(s.Properties))
	for k, v := range s.Properties {
		out.Properties[k] = v
	}
	for _, key := range SecretProperties {
		if secret, ok := out.Properties[key].(string); ok {
			out.Properties[key] = redact(secret)
		}
	}
	return &out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}

// Clone returns a deep enough copy for stores to hand out safely
func (s *Subscription) Clone() *Subscription {
	out := *s
	if s.Properties != nil {
		out.Properties = make(map[string]interface{}, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = v
		}
	}
	return &out
}

// Store persists subscriptions
type Store interface {
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByEndpoint(ctx context.Context, endpoint string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	// ListExpiring returns subscriptions still active at after that lapse
	// before before, i.e. after < expires_at < before.
	ListExpiring(ctx context.Context, after, before time.Time) ([]*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
	Health(ctx context.Context) error
	Close() error
}
