// Package redis publishes messages to Redis Streams.
package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"stripe-webhook-router/internal/brokers"
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/common/validation"
)

const defaultStream = "stripe-events"

type Config struct {
	Address      string `json:"address" validate:"required"`
	Password     string `json:"password"`
	DB           int    `json:"db" validate:"min=0,max=15"`
	PoolSize     int    `json:"pool_size" validate:"min=1,max=1000"`
	StreamMaxLen int64  `json:"stream_max_len" validate:"min=0"`
}

func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	return validation.ValidateStruct(c)
}

func (c *Config) GetType() string {
	return "redis"
}

func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("redis://%s/%d", c.Address, c.DB)
}

// Broker appends each message to the stream named by its queue
type Broker struct {
	client *redis.Client
	config *Config
	owned  bool
	logger logging.Logger
}

// NewBroker connects to Redis and verifies the connection
func NewBroker(config *Config) (*Broker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	b := NewBrokerWithClient(client, config)
	b.owned = true
	return b, nil
}

// NewBrokerWithClient publishes through an existing client. Close leaves
// the client open.
func NewBrokerWithClient(client *redis.Client, config *Config) *Broker {
	return &Broker{
		client: client,
		config: config,
		logger: logging.Component("redis_broker"),
	}
}

func (b *Broker) Name() string {
	return "redis"
}

func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	stream := message.QueueOr(defaultStream)

	fields := map[string]interface{}{
		"body": string(message.Body),
	}
	for k, v := range message.Attributes() {
		fields[k] = v
	}

	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: fields,
	}
	if b.config.StreamMaxLen > 0 {
		args.MaxLen = b.config.StreamMaxLen
		args.Approx = true
	}

	id, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return errors.ConnectionError("failed to publish message to Redis stream", err)
	}

	b.logger.Debug("Message published to Redis stream",
		logging.String("stream", stream),
		logging.String("id", id),
	)
	return nil
}

func (b *Broker) Health(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return errors.ConnectionError("redis broker unhealthy", err)
	}
	return nil
}

func (b *Broker) Close() error {
	if b.owned {
		return b.client.Close()
	}
	return nil
}

// Factory creates Redis Streams brokers
type Factory struct{}

func (Factory) GetType() string {
	return "redis"
}

func (Factory) Create(config brokers.Config) (brokers.Broker, error) {
	c, ok := config.(*Config)
	if !ok {
		return nil, brokers.WrongConfig("redis")
	}
	return NewBroker(c)
}
