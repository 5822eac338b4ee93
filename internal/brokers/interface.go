// Package brokers defines the message brokers accepted handler output is
// published to, and a registry of broker factories keyed by type.
package brokers

import (
	"context"
	"time"
)

// Broker publishes messages to a downstream system
type Broker interface {
	Name() string
	Publish(ctx context.Context, message *Message) error
	Health(ctx context.Context) error
	Close() error
}

// Config is implemented by each broker's settings
type Config interface {
	Validate() error
	// GetConnectionString returns a description safe for logs
	GetConnectionString() string
	GetType() string
}

// Message is one outbound broker message. Queue is the stream, topic or
// queue name depending on the broker.
type Message struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Headers    map[string]string
	Body       []byte
	Timestamp  time.Time
	MessageID  string
}

// Factory creates brokers of one type
type Factory interface {
	Create(config Config) (Broker, error)
	GetType() string
}
