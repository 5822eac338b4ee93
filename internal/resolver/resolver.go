// Package resolver turns a signed thin-event notification into the full
// event by calling the provider's v2 events API.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"stripe-webhook-router/internal/circuitbreaker"
	"stripe-webhook-router/internal/common/cache"
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/event"
	"stripe-webhook-router/internal/signature"
)

// DefaultTimeout bounds a single upstream retrieval
const DefaultTimeout = 10 * time.Second

// ResolveRequest carries everything needed to resolve one notification
type ResolveRequest struct {
	Payload         []byte
	SignatureHeader string
	Secret          string
	APIKey          string
}

// Resolver resolves thin notifications into canonical events
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*event.Event, error)
}

// Config holds resolver settings
type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ThinEventResolver verifies the notification, then retrieves the event
// through a circuit breaker and an optional cache.
type ThinEventResolver struct {
	verifier *signature.Verifier
	client   EventsClient
	breaker  *circuitbreaker.Breaker
	cache    cache.Cache
	config   Config
	logger   logging.Logger
}

// Option configures a ThinEventResolver
type Option func(*ThinEventResolver)

// WithCache enables caching of resolved events
func WithCache(c cache.Cache) Option {
	return func(r *ThinEventResolver) {
		r.cache = c
	}
}

// WithBreaker overrides the circuit breaker
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(r *ThinEventResolver) {
		r.breaker = b
	}
}

// NewThinEventResolver creates a resolver
func NewThinEventResolver(verifier *signature.Verifier, client EventsClient, config Config, opts ...Option) *ThinEventResolver {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	logger := logging.Component("resolver")
	r := &ThinEventResolver{
		verifier: verifier,
		client:   client,
		config:   config,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuitbreaker.New("stripe-events-api", circuitbreaker.UpstreamAPIConfig, logger)
	}
	return r
}

// Resolve verifies req.Payload and fetches the full event it names. Every
// failure is returned as a single resolution error.
func (r *ThinEventResolver) Resolve(ctx context.Context, req ResolveRequest) (*event.Event, error) {
	if req.APIKey == "" {
		return nil, r.fail(req, errors.AuthError("api key is required to resolve thin events"))
	}

	if err := r.verifier.Verify(req.Payload, req.SignatureHeader, req.Secret); err != nil {
		return nil, r.fail(req, err)
	}

	notification, err := event.DecodeThinNotification(req.Payload)
	if err != nil {
		return nil, r.fail(req, err)
	}

	key := cacheKey(req.APIKey, notification.ID)
	if r.cache != nil {
		if body, found := r.cache.Get(ctx, key); found {
			if resolved, err := event.DecodeV2Event(body); err == nil {
				r.logger.Debug("Thin event served from cache", logging.String("event_id", notification.ID))
				return resolved, nil
			}
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	var body []byte
	err = r.breaker.Execute(fetchCtx, func() error {
		var fetchErr error
		body, fetchErr = r.client.RetrieveEvent(fetchCtx, req.APIKey, notification.ID)
		return fetchErr
	})
	if err != nil {
		if fetchCtx.Err() == context.DeadlineExceeded && !errors.IsType(err, errors.ErrTypeTimeout) {
			err = errors.TimeoutError("thin event resolution").WithCause(err)
		}
		return nil, r.fail(req, err)
	}

	resolved, err := event.DecodeV2Event(body)
	if err != nil {
		return nil, r.fail(req, err)
	}
	if resolved.ID != notification.ID {
		return nil, r.fail(req, errors.ValidationError("resolved event id does not match notification"))
	}

	if r.cache != nil && r.config.CacheTTL > 0 {
		if err := r.cache.Set(ctx, key, body, r.config.CacheTTL); err != nil {
			r.logger.Warn("Failed to cache resolved event", logging.String("event_id", notification.ID), logging.Err(err))
		}
	}

	r.logger.Debug("Thin event resolved",
		logging.String("event_id", resolved.ID),
		logging.String("event_type", resolved.Type),
	)
	return resolved, nil
}

func (r *ThinEventResolver) fail(req ResolveRequest, cause error) error {
	r.logger.Warn("Thin event resolution failed",
		logging.SecretLength("secret_length", req.Secret),
		logging.SecretLength("header_length", req.SignatureHeader),
		logging.Err(cause),
	)

	return errors.ResolutionError("failed to resolve thin event", cause).
		WithContext("secret_length", len(req.Secret)).
		WithContext("header_length", len(req.SignatureHeader))
}

// cacheKey scopes cached events to the credential that fetched them
func cacheKey(apiKey, eventID string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8]) + ":" + eventID
}
