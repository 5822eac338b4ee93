// Package events contains the channel handlers that turn a dispatched event
// into downstream variables.
//
// Handlers receive the shared payload built by the dispatcher. They re-check
// that the payload is the family they expect and return an Ignore error when
// it is not, which is a normal outcome and not a failure.
package events

import (
	"context"

	"github.com/stripe/stripe-go/v81"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/event"
	"stripe-webhook-router/internal/signature"
	"stripe-webhook-router/internal/trigger"
)

// ParamEndpointSecret is the handler parameter Verified reads its secret from
const ParamEndpointSecret = "endpoint_secret"

// Handler produces variables for one channel. Implementations must not
// modify req or payload.
type Handler interface {
	Handle(ctx context.Context, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (trigger.Variables, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (trigger.Variables, error)

func (f HandlerFunc) Handle(ctx context.Context, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (trigger.Variables, error) {
	return f(ctx, req, params, payload)
}

// SnapshotEvents forwards the request JSON of any snapshot event
type SnapshotEvents struct{}

func (SnapshotEvents) Handle(ctx context.Context, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (trigger.Variables, error) {
	if err := expectKind(payload, event.KindSnapshot); err != nil {
		return nil, err
	}
	return requestVariables(req), nil
}

// CheckoutSessionCompleted forwards the request JSON of completed checkout sessions
type CheckoutSessionCompleted struct{}

func (CheckoutSessionCompleted) Handle(ctx context.Context, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (trigger.Variables, error) {
	if err := expectKind(payload, event.KindSnapshot); err != nil {
		return nil, err
	}
	if payload.Event.Type != string(stripe.EventTypeCheckoutSessionCompleted) {
		return nil, errors.IgnoreEvent("not a checkout.session.completed event")
	}
	return requestVariables(req), nil
}

// ThinEvents flattens resolved thin events
type ThinEvents struct{}

func (ThinEvents) Handle(ctx context.Context, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (trigger.Variables, error) {
	if err := expectKind(payload, event.KindThin); err != nil {
		return nil, err
	}
	return trigger.Variables(event.Flatten(payload.Event)), nil
}

// Verified re-verifies the request signature with the secret in the handler
// parameters before running Next.
type Verified struct {
	Verifier *signature.Verifier
	Next     Handler
}

func (v Verified) Handle(ctx context.Context, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (trigger.Variables, error) {
	secret, _ := params[ParamEndpointSecret].(string)
	if err := v.Verifier.VerifyRequest(req.Body, req.Header, secret); err != nil {
		return nil, err
	}
	return v.Next.Handle(ctx, req, params, payload)
}

func expectKind(payload trigger.Payload, kind event.Kind) error {
	if payload.Event == nil {
		return errors.IgnoreEvent("payload carries no event")
	}
	if payload.Kind != kind {
		return errors.IgnoreEvent("expected " + string(kind) + " event, got " + string(payload.Kind))
	}
	return nil
}

// requestVariables copies the top level of the parsed body so callers can
// add keys without touching the shared request.
func requestVariables(req *trigger.Request) trigger.Variables {
	body := req.JSON()
	vars := make(trigger.Variables, len(body))
	for k, v := range body {
		vars[k] = v
	}
	return vars
}
