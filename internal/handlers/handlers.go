// Package handlers implements the HTTP surface: webhook ingress, the admin
// subscription API and the health endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/events"
	"stripe-webhook-router/internal/middleware"
	"stripe-webhook-router/internal/subscription"
	"stripe-webhook-router/internal/trigger"
)

// DefaultMaxBodySize bounds inbound webhook bodies
const DefaultMaxBodySize int64 = 1 << 20

// Dispatcher turns a verified inbound request into a dispatch result
type Dispatcher interface {
	Dispatch(ctx context.Context, sub *subscription.Subscription, req *trigger.Request) (*trigger.DispatchResult, error)
}

// EventRunner executes the handlers of a dispatch result
type EventRunner interface {
	Run(ctx context.Context, sub *subscription.Subscription, req *trigger.Request, result *trigger.DispatchResult) events.Report
}

// HealthCheck reports the health of one dependency
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	subscriptions *subscription.Manager
	dispatcher    Dispatcher
	runner        EventRunner
	maxBodySize   int64
	checks        map[string]HealthCheck
	logger        logging.Logger
}

type Option func(*Handlers)

// WithMaxBodySize overrides DefaultMaxBodySize
func WithMaxBodySize(n int64) Option {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}

// WithHealthCheck adds a named dependency to GET /health
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handlers) {
		h.checks[name] = check
	}
}

// New creates the handlers. runner may be nil, in which case dispatch
// results are acknowledged without running handlers.
func New(subscriptions *subscription.Manager, dispatcher Dispatcher, runner EventRunner, opts ...Option) *Handlers {
	h := &Handlers{
		subscriptions: subscriptions,
		dispatcher:    dispatcher,
		runner:        runner,
		maxBodySize:   DefaultMaxBodySize,
		checks:        make(map[string]HealthCheck),
		logger:        logging.Component("handlers"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.ValidationError("invalid JSON body").WithCode("invalid_json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	middleware.WriteJSON(w, status, v)
}

func writeError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}
