package subscription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/common/validation"
)

// DefaultTTL is how long a subscription lives between refreshes
const DefaultTTL = 7 * 24 * time.Hour

// CreateRequest describes a new subscription
type CreateRequest struct {
	Endpoint       string   `json:"endpoint" validate:"omitempty,endpoint_slug"`
	EndpointSecret string   `json:"endpoint_secret" validate:"required"`
	APIKey         string   `json:"api_key"`
	ExternalID     string   `json:"external_id" validate:"max=255"`
	Events         []string `json:"events" validate:"dive,event_type"`
}

// Manager owns the subscription lifecycle
type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger logging.Logger
}

// NewManager creates a manager. A non-positive ttl uses DefaultTTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logging.Component("subscription"),
	}
}

// Store returns the backing store
func (m *Manager) Store() Store {
	return m.store
}

// Create validates the credentials and stores a new subscription
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Subscription, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, errors.ValidationError("API key is required to validate credentials.").WithCode("credentials_invalid")
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	sub := &Subscription{
		ID:        uuid.NewString(),
		Endpoint:  req.Endpoint,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
		UpdatedAt: now,
		Properties: map[string]interface{}{
			PropertyExternalID:     req.ExternalID,
			PropertyEvents:         lo.Uniq(req.Events),
			PropertyEndpointSecret: req.EndpointSecret,
			PropertyAPIKey:         req.APIKey,
		},
	}
	if sub.Endpoint == "" {
		sub.Endpoint = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if req.ExternalID == "" {
		sub.Properties[PropertyExternalID] = sub.ID
	}

	if err := m.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	m.logger.Info("Subscription created",
		logging.String("subscription_id", sub.ID),
		logging.String("endpoint", sub.Endpoint),
		logging.Int("events", len(req.Events)),
		logging.SecretLength("secret_length", req.EndpointSecret),
	)
	return sub, nil
}

// Refresh extends the expiry of a subscription, keeping endpoint and properties
func (m *Manager) Refresh(ctx context.Context, id string) (*Subscription, error) {
	sub, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	sub.ExpiresAt = now.Add(m.ttl)
	sub.UpdatedAt = now

	if err := m.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	m.logger.Debug("Subscription refreshed",
		logging.String("subscription_id", sub.ID),
		logging.Any("expires_at", sub.ExpiresAt),
	)
	return sub, nil
}

// Delete removes a subscription
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("Subscription deleted", logging.String("subscription_id", id))
	return nil
}

// Get returns a subscription by id
func (m *Manager) Get(ctx context.Context, id string) (*Subscription, error) {
	return m.store.Get(ctx, id)
}

// List returns every subscription
func (m *Manager) List(ctx context.Context) ([]*Subscription, error) {
	return m.store.List(ctx)
}

// Lookup returns the active subscription for an inbound endpoint. Expired
// subscriptions are reported as not found.
func (m *Manager) Lookup(ctx context.Context, endpoint string) (*Subscription, error) {
	sub, err := m.store.GetByEndpoint(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if sub.Expired(m.now()) {
		return nil, errors.NotFoundError("subscription").WithCode("subscription_expired")
	}
	return sub, nil
}
