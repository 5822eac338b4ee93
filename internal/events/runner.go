package events

import (
	"context"
	"fmt"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/subscription"
	"stripe-webhook-router/internal/trigger"
)

// Delivery is one accepted handler output
type Delivery struct {
	Channel        string
	SubscriptionID string
	ExternalID     string
	EventID        string
	EventType      string
	Variables      trigger.Variables
}

// Sink receives accepted deliveries
type Sink interface {
	Deliver(ctx context.Context, delivery Delivery) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, delivery Delivery) error

func (f SinkFunc) Deliver(ctx context.Context, delivery Delivery) error {
	return f(ctx, delivery)
}

// Status of a single channel after running its handler
type Status string

const (
	StatusAccepted       Status = "accepted"
	StatusIgnored        Status = "ignored"
	StatusFailed         Status = "failed"
	StatusUnhandled      Status = "unhandled"
	StatusDeliveryFailed Status = "delivery_failed"
)

// Outcome records what happened on one channel
type Outcome struct {
	Channel string
	Status  Status
	Err     error
}

// Report aggregates the outcomes of one dispatch
type Report struct {
	Outcomes []Outcome
}

// Failed returns outcomes that represent real failures. Ignored channels are
// not failures.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed || o.Status == StatusDeliveryFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Accepted counts channels whose handler produced variables
func (r Report) Accepted() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusAccepted {
			n++
		}
	}
	return n
}

// Runner executes the handlers of a dispatch result in channel order
type Runner struct {
	registry *Registry
	sink     Sink
	logger   logging.Logger
}

// NewRunner creates a runner. A nil sink discards accepted variables.
func NewRunner(registry *Registry, sink Sink) *Runner {
	return &Runner{
		registry: registry,
		sink:     sink,
		logger:   logging.Component("events"),
	}
}

// Run invokes every channel handler of result. Handlers run even if a
// sibling fails; the report never changes the acknowledgement.
func (r *Runner) Run(ctx context.Context, sub *subscription.Subscription, req *trigger.Request, result *trigger.DispatchResult) Report {
	var report Report
	logger := r.logger.WithContext(ctx).WithFields(
		logging.String("subscription_id", sub.ID),
		logging.String("event_type", result.Ack.Body.EventType),
	)

	params := handlerParams(sub)
	for _, channel := range result.EventNames {
		outcome := Outcome{Channel: channel}

		handler, ok := r.registry.Get(channel)
		if !ok {
			outcome.Status = StatusUnhandled
			logger.Debug("No handler registered for channel", logging.String("channel", channel))
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		vars, err := r.invoke(ctx, handler, req, params, result.Payload)
		switch {
		case errors.IsIgnore(err):
			outcome.Status = StatusIgnored
			outcome.Err = err
			logger.Debug("Handler ignored event", logging.String("channel", channel), logging.Err(err))
		case err != nil:
			outcome.Status = StatusFailed
			outcome.Err = err
			logger.Error("Handler failed", err, logging.String("channel", channel))
		default:
			outcome.Status = StatusAccepted
			if err := r.deliver(ctx, sub, channel, result, vars); err != nil {
				outcome.Status = StatusDeliveryFailed
				outcome.Err = err
				logger.Error("Failed to deliver handler output", err, logging.String("channel", channel))
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report
}

func (r *Runner) invoke(ctx context.Context, handler Handler, req *trigger.Request, params map[string]interface{}, payload trigger.Payload) (vars trigger.Variables, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.InternalError("handler panicked", fmt.Errorf("%v", rec))
		}
	}()
	return handler.Handle(ctx, req, params, payload)
}

func (r *Runner) deliver(ctx context.Context, sub *subscription.Subscription, channel string, result *trigger.DispatchResult, vars trigger.Variables) error {
	if r.sink == nil {
		return nil
	}
	delivery := Delivery{
		Channel:        channel,
		SubscriptionID: sub.ID,
		ExternalID:     sub.StringProperty(subscription.PropertyExternalID),
		EventType:      result.Ack.Body.EventType,
		Variables:      vars,
	}
	if result.Payload.Event != nil {
		delivery.EventID = result.Payload.Event.ID
	}
	return r.sink.Deliver(ctx, delivery)
}

// handlerParams exposes the subscription properties to handlers. The map is
// a copy so handlers cannot alter the subscription.
func handlerParams(sub *subscription.Subscription) map[string]interface{} {
	params := make(map[string]interface{}, len(sub.Properties))
	for k, v := range sub.Properties {
		params[k] = v
	}
	return params
}
