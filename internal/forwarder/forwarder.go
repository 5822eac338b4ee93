// Package forwarder publishes accepted handler output to a message broker.
package forwarder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"stripe-webhook-router/internal/brokers"
	"stripe-webhook-router/internal/circuitbreaker"
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/events"
)

// Header names set on every forwarded message
const (
	HeaderEventID        = "event_id"
	HeaderEventType      = "event_type"
	HeaderChannel        = "channel"
	HeaderSubscriptionID = "subscription_id"
	HeaderExternalID     = "external_id"
)

// Forwarder implements events.Sink on top of a broker
type Forwarder struct {
	broker      brokers.Broker
	breaker     *circuitbreaker.Breaker
	queuePrefix string
	now         func() time.Time
	newID       func() string
	logger      logging.Logger
}

type Option func(*Forwarder)

// WithQueuePrefix prefixes every channel name when used as a queue
func WithQueuePrefix(prefix string) Option {
	return func(f *Forwarder) {
		f.queuePrefix = prefix
	}
}

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(f *Forwarder) {
		f.breaker = b
	}
}

func New(broker brokers.Broker, opts ...Option) *Forwarder {
	logger := logging.Component("forwarder").WithFields(logging.String("broker", broker.Name()))
	f := &Forwarder{
		broker: broker,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.breaker == nil {
		f.breaker = circuitbreaker.New("broker-"+broker.Name(), circuitbreaker.BrokerConfig, logger)
	}
	return f
}

// Deliver publishes delivery.Variables as JSON. The queue is the channel
// name and the routing key is the event type.
func (f *Forwarder) Deliver(ctx context.Context, delivery events.Delivery) error {
	body, err := json.Marshal(delivery.Variables)
	if err != nil {
		return errors.InternalError("failed to encode handler variables", err)
	}

	headers := map[string]string{
		HeaderEventID:        delivery.EventID,
		HeaderEventType:      delivery.EventType,
		HeaderChannel:        delivery.Channel,
		HeaderSubscriptionID: delivery.SubscriptionID,
	}
	if delivery.ExternalID != "" {
		headers[HeaderExternalID] = delivery.ExternalID
	}

	message := &brokers.Message{
		Queue:      f.queuePrefix + delivery.Channel,
		RoutingKey: delivery.EventType,
		Headers:    headers,
		Body:       body,
		Timestamp:  f.now(),
		MessageID:  f.newID(),
	}

	err = f.breaker.Execute(ctx, func() error {
		return f.broker.Publish(ctx, message)
	})
	if err != nil {
		return err
	}

	f.logger.Debug("Delivery forwarded",
		logging.String("queue", message.Queue),
		logging.String("event_id", delivery.EventID),
		logging.String("message_id", message.MessageID),
	)
	return nil
}

// Health reports the broker health
func (f *Forwarder) Health(ctx context.Context) error {
	return f.broker.Health(ctx)
}

func (f *Forwarder) Close() error {
	return f.broker.Close()
}
