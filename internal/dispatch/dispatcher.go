// Package dispatch routes a verified webhook request to its handler channels.
//
// A dispatch is linear: the endpoint secret is read from the subscription,
// the body is classified, snapshot events are verified and decoded while thin
// events are resolved upstream, and the channel table selects the handlers.
// The acknowledgement is built here and does not depend on what the handlers
// later decide.
package dispatch

import (
	"context"
	"net/http"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/event"
	"stripe-webhook-router/internal/resolver"
	"stripe-webhook-router/internal/signature"
	"stripe-webhook-router/internal/subscription"
	"stripe-webhook-router/internal/trigger"
)

// Dispatcher turns an inbound request into a DispatchResult
type Dispatcher struct {
	verifier    *signature.Verifier
	resolver    resolver.Resolver
	classifier  event.Classifier
	credentials CredentialSource
	channels    *ChannelTable
	logger      logging.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

func WithClassifier(c event.Classifier) Option {
	return func(d *Dispatcher) {
		d.classifier = c
	}
}

func WithCredentials(c CredentialSource) Option {
	return func(d *Dispatcher) {
		d.credentials = c
	}
}

func WithChannels(t *ChannelTable) Option {
	return func(d *Dispatcher) {
		d.channels = t
	}
}

// New creates a dispatcher. r may be nil when thin events are not expected;
// they are then rejected.
func New(verifier *signature.Verifier, r resolver.Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		verifier:    verifier,
		resolver:    r,
		classifier:  event.NewClassifier(),
		credentials: SubscriptionCredentials{},
		channels:    DefaultChannelTable(),
		logger:      logging.Component("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels returns the table used for channel selection
func (d *Dispatcher) Channels() *ChannelTable {
	return d.channels
}

// Dispatch verifies, classifies and routes req for sub. Errors are
// validation or dispatch errors and no handler may run when one is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, sub *subscription.Subscription, req *trigger.Request) (*trigger.DispatchResult, error) {
	if sub == nil {
		return nil, errors.DispatchError("no subscription for request", nil)
	}

	secret := sub.StringProperty(subscription.PropertyEndpointSecret)
	if secret == "" {
		return nil, errors.ValidationError("endpoint secret is not configured").
			WithCode("secret_missing").
			WithContext("subscription_id", sub.ID)
	}

	classification, err := d.classifier.Classify(req.JSON())
	if err != nil {
		return nil, err
	}

	header := d.verifier.HeaderValue(req.Header)

	var ev *event.Event
	switch classification.Kind {
	case event.KindSnapshot:
		if err := d.verifier.Verify(req.Body, header, secret); err != nil {
			return nil, err
		}
		ev, err = event.DecodeSnapshot(req.Body)
		if err != nil {
			return nil, err
		}

	case event.KindThin:
		ev, err = d.resolveThin(ctx, sub, req, header, secret)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.DispatchError("unknown event kind "+string(classification.Kind), nil)
	}

	names := d.channels.Channels(classification.Kind, classification.Type)

	d.logger.WithContext(ctx).Debug("Event dispatched",
		logging.String("subscription_id", sub.ID),
		logging.String("event_id", ev.ID),
		logging.String("event_type", classification.Type),
		logging.String("kind", string(classification.Kind)),
		logging.Strings("channels", names),
	)

	return &trigger.DispatchResult{
		EventNames: names,
		Ack: trigger.Ack{
			StatusCode: http.StatusOK,
			Body: trigger.AckBody{
				Status:               "ok",
				EventType:            classification.Type,
				DispatchedEventNames: names,
			},
		},
		Payload: trigger.Payload{
			Kind:  classification.Kind,
			Event: ev,
		},
	}, nil
}

func (d *Dispatcher) resolveThin(ctx context.Context, sub *subscription.Subscription, req *trigger.Request, header, secret string) (*event.Event, error) {
	if d.resolver == nil {
		return nil, errors.DispatchError("thin events are not supported by this endpoint", nil)
	}

	apiKey, err := d.credentials.APIKey(ctx, sub)
	if err != nil {
		return nil, errors.WrapValidation("failed to load API credentials", err)
	}

	ev, err := d.resolver.Resolve(ctx, resolver.ResolveRequest{
		Payload:         req.Body,
		SignatureHeader: header,
		Secret:          secret,
		APIKey:          apiKey,
	})
	if err != nil {
		return nil, errors.WrapValidation("failed to resolve thin event", err).
			WithContext("secret_length", len(secret)).
			WithContext("header_length", len(header))
	}
	if ev == nil {
		return nil, errors.DispatchError("upstream returned an empty event", nil)
	}
	return ev, nil
}
