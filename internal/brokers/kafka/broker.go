// Package kafka publishes messages with the confluent-kafka-go producer.
package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"stripe-webhook-router/internal/brokers"
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
)

const defaultTopic = "stripe-events"

type Broker struct {
	config   *Config
	producer *kafka.Producer
	logger   logging.Logger
}

// ProducerConfig renders the librdkafka settings for config
func ProducerConfig(config *Config) *kafka.ConfigMap {
	cm := kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(config.Brokers, ","),
		"client.id":          config.ClientID,
		"acks":               "all",
		"message.timeout.ms": int(config.Timeout.Milliseconds()),
	}
	if config.SecurityProtocol != "PLAINTEXT" {
		cm["security.protocol"] = config.SecurityProtocol
	}
	if strings.HasPrefix(config.SecurityProtocol, "SASL_") {
		cm["sasl.mechanism"] = config.SASLMechanism
		cm["sasl.username"] = config.SASLUsername
		cm["sasl.password"] = config.SASLPassword
	}
	return &cm
}

func NewBroker(config *Config) (*Broker, error) {
	producer, err := kafka.NewProducer(ProducerConfig(config))
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}
	return &Broker{
		config:   config,
		producer: producer,
		logger:   logging.Component("kafka_broker"),
	}, nil
}

func (b *Broker) Name() string {
	return "kafka"
}

// Publish produces to the topic named by the message queue and waits for
// the delivery report. The routing key becomes the record key.
func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	topic := message.QueueOr(defaultTopic)

	record := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message.Body,
		Timestamp:      message.Timestamp,
		Headers:        recordHeaders(message),
	}
	if message.RoutingKey != "" {
		record.Key = []byte(message.RoutingKey)
	}

	delivery := make(chan kafka.Event, 1)
	if err := b.producer.Produce(record, delivery); err != nil {
		return errors.ConnectionError("failed to produce Kafka message", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.InternalError("unexpected Kafka delivery event", nil)
		}
		if m.TopicPartition.Error != nil {
			return errors.ConnectionError("Kafka delivery failed", m.TopicPartition.Error)
		}
		b.logger.Debug("Message delivered to Kafka",
			logging.String("topic", topic),
			logging.Int("partition", int(m.TopicPartition.Partition)),
		)
		return nil
	}
}

func recordHeaders(message *brokers.Message) []kafka.Header {
	headers := make([]kafka.Header, 0, len(message.Headers)+1)
	for k, v := range message.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if message.MessageID != "" {
		headers = append(headers, kafka.Header{Key: brokers.AttrMessageID, Value: []byte(message.MessageID)})
	}
	return headers
}

func (b *Broker) Health(ctx context.Context) error {
	timeout := 5000
	if deadline, ok := ctx.Deadline(); ok {
		if ms := int(time.Until(deadline).Milliseconds()); ms > 0 {
			timeout = ms
		}
	}
	if _, err := b.producer.GetMetadata(nil, false, timeout); err != nil {
		return errors.ConnectionError("kafka broker unhealthy", err)
	}
	return nil
}

func (b *Broker) Close() error {
	if b.producer != nil {
		b.producer.Flush(int(b.config.Timeout.Milliseconds()))
		b.producer.Close()
		b.producer = nil
	}
	return nil
}

type Factory struct{}

func (Factory) GetType() string {
	return "kafka"
}

func (Factory) Create(config brokers.Config) (brokers.Broker, error) {
	c, ok := config.(*Config)
	if !ok {
		return nil, brokers.WrongConfig("kafka")
	}
	return NewBroker(c)
}
