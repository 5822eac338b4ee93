// Package gcp publishes messages to a Google Cloud Pub/Sub topic.
package gcp

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"stripe-webhook-router/internal/brokers"
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
)

type Broker struct {
	config *Config
	client *pubsub.Client
	topic  *pubsub.Topic
	logger logging.Logger
}

// ClientOptions returns the credential options for config. With neither
// credentials JSON nor a path, Application Default Credentials are used.
func ClientOptions(config *Config) []option.ClientOption {
	var opts []option.ClientOption
	if config.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	} else if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}
	return opts
}

// NewBroker connects and checks that the topic exists
func NewBroker(ctx context.Context, config *Config, extra ...option.ClientOption) (*Broker, error) {
	client, err := pubsub.NewClient(ctx, config.ProjectID, append(ClientOptions(config), extra...)...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create Pub/Sub client", err)
	}

	topic := client.Topic(config.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to check topic existence", err)
	}
	if !exists {
		client.Close()
		return nil, errors.ConfigError("topic " + config.TopicID + " does not exist")
	}

	topic.PublishSettings.CountThreshold = 10
	topic.PublishSettings.DelayThreshold = 50 * time.Millisecond
	if config.OrderingKey != "" {
		topic.EnableMessageOrdering = true
	}

	return &Broker{
		config: config,
		client: client,
		topic:  topic,
		logger: logging.Component("gcp_broker"),
	}, nil
}

func (b *Broker) Name() string {
	return "gcp"
}

// Publish sends the message and waits for the server id
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	attrs := message.Attributes()
	if message.Queue != "" {
		attrs["queue"] = message.Queue
	}

	result := b.topic.Publish(ctx, &pubsub.Message{
		Data:        message.Body,
		Attributes:  attrs,
		OrderingKey: b.config.OrderingKey,
	})
	id, err := result.Get(ctx)
	if err != nil {
		if b.config.OrderingKey != "" {
			b.topic.ResumePublish(b.config.OrderingKey)
		}
		return errors.ConnectionError("failed to publish message to Pub/Sub", err)
	}

	b.logger.Debug("Message published to Pub/Sub",
		logging.String("message_id", id),
		logging.String("topic_id", b.config.TopicID),
	)
	return nil
}

func (b *Broker) Health(ctx context.Context) error {
	if _, err := b.topic.Config(ctx); err != nil {
		return errors.ConnectionError("failed to get topic config", err)
	}
	return nil
}

// Close flushes pending publishes and releases the client
func (b *Broker) Close() error {
	b.topic.Stop()
	return b.client.Close()
}

type Factory struct{}

func (Factory) GetType() string {
	return "gcp"
}

func (Factory) Create(config brokers.Config) (brokers.Broker, error) {
	c, ok := config.(*Config)
	if !ok {
		return nil, brokers.WrongConfig("gcp")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return NewBroker(ctx, c)
}
