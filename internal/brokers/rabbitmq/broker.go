// Package rabbitmq publishes messages over AMQP using a connection pool.
package rabbitmq

import (
	"context"

	"github.com/streadway/amqp"

	"stripe-webhook-router/internal/brokers"
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
)

type Broker struct {
	config *Config
	pool   Pool
	logger logging.Logger
}

func NewBroker(config *Config) (*Broker, error) {
	pool, err := newConnectionPool(config.URL, config.PoolSize)
	if err != nil {
		return nil, err
	}
	return NewBrokerWithPool(config, pool), nil
}

// NewBrokerWithPool creates a broker over an existing pool
func NewBrokerWithPool(config *Config, pool Pool) *Broker {
	return &Broker{
		config: config,
		pool:   pool,
		logger: logging.Component("rabbitmq_broker").WithFields(logging.String("url", config.GetConnectionString())),
	}
}

func (b *Broker) Name() string {
	return "rabbitmq"
}

// Publish declares the durable queue (and exchange binding when configured)
// and publishes a persistent JSON message.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, release, err := b.pool.Channel()
	if err != nil {
		return err
	}
	defer release()

	exchange := message.Exchange
	if exchange == "" {
		exchange = b.config.Exchange
	}
	routingKey := message.Queue

	if message.Queue != "" {
		if _, err := ch.QueueDeclare(message.Queue, true, false, false, false, nil); err != nil {
			return errors.ConnectionError("failed to declare queue "+message.Queue, err)
		}
	}
	if exchange != "" {
		if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
			return errors.ConnectionError("failed to declare exchange "+exchange, err)
		}
		if message.Queue != "" {
			if err := ch.QueueBind(message.Queue, message.Queue, exchange, false, nil); err != nil {
				return errors.ConnectionError("failed to bind queue "+message.Queue, err)
			}
		}
	}

	headers := amqp.Table{}
	for k, v := range message.Headers {
		headers[k] = v
	}
	if message.RoutingKey != "" {
		headers[brokers.AttrRoutingKey] = message.RoutingKey
	}

	err = ch.Publish(exchange, routingKey, false, false, amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    message.MessageID,
		Timestamp:    message.Timestamp,
		Body:         message.Body,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish to RabbitMQ", err)
	}

	b.logger.Debug("Message published to RabbitMQ",
		logging.String("queue", message.Queue),
		logging.String("exchange", exchange),
		logging.String("message_id", message.MessageID),
	)
	return nil
}

func (b *Broker) Health(ctx context.Context) error {
	_, release, err := b.pool.Channel()
	if err != nil {
		return err
	}
	release()
	return nil
}

func (b *Broker) Close() error {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	return nil
}

type Factory struct{}

func (Factory) GetType() string {
	return "rabbitmq"
}

func (Factory) Create(config brokers.Config) (brokers.Broker, error) {
	c, ok := config.(*Config)
	if !ok {
		return nil, brokers.WrongConfig("rabbitmq")
	}
	return NewBroker(c)
}
