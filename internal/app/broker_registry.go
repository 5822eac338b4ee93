package app

import (
	"stripe-webhook-router/internal/brokers"
	"stripe-webhook-router/internal/brokers/aws"
	"stripe-webhook-router/internal/brokers/gcp"
	"stripe-webhook-router/internal/brokers/kafka"
	"stripe-webhook-router/internal/brokers/rabbitmq"
	redisbroker "stripe-webhook-router/internal/brokers/redis"
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/config"
	"stripe-webhook-router/internal/forwarder"
)

// RegisterBrokerFactories registers all broker factories with the registry
func RegisterBrokerFactories(registry *brokers.Registry) {
	registry.Register(rabbitmq.Factory{})
	registry.Register(kafka.Factory{})
	registry.Register(redisbroker.Factory{})
	registry.Register(aws.Factory{})
	registry.Register(gcp.Factory{})
}

// BrokerConfig builds the broker configuration selected by BROKER_TYPE. It
// returns nil for "none".
func BrokerConfig(cfg *config.Config) (brokers.Config, error) {
	switch cfg.BrokerType {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		return &rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange}, nil
	case "redis":
		address := cfg.RedisStreamAddress
		password := cfg.RedisPassword
		if address == "" {
			address = cfg.RedisAddress
		}
		return &redisbroker.Config{
			Address:      address,
			Password:     password,
			DB:           cfg.RedisDB,
			StreamMaxLen: cfg.RedisStreamMaxLen,
		}, nil
	case "kafka":
		return &kafka.Config{
			Brokers:          cfg.KafkaBrokers,
			ClientID:         cfg.KafkaClientID,
			SecurityProtocol: cfg.KafkaSecurityProtocol,
			SASLMechanism:    cfg.KafkaSASLMechanism,
			SASLUsername:     cfg.KafkaSASLUsername,
			SASLPassword:     cfg.KafkaSASLPassword,
		}, nil
	case "aws":
		return &aws.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			QueueURL:        cfg.AWSQueueURL,
			TopicArn:        cfg.AWSTopicArn,
			Endpoint:        cfg.AWSEndpoint,
		}, nil
	case "gcp":
		return &gcp.Config{
			ProjectID:       cfg.GCPProjectID,
			TopicID:         cfg.GCPTopicID,
			CredentialsPath: cfg.GCPCredentialsPath,
		}, nil
	default:
		return nil, errors.ConfigError("unsupported broker type: " + cfg.BrokerType)
	}
}

func (app *App) initializeBroker() error {
	brokerConfig, err := BrokerConfig(app.Config)
	if err != nil {
		return err
	}
	if brokerConfig == nil {
		app.Logger.Info("Broker: Not configured, handler output is discarded")
		return nil
	}

	registry := brokers.NewRegistry()
	RegisterBrokerFactories(registry)

	broker, err := registry.Create(brokerConfig)
	if err != nil {
		return err
	}

	app.Broker = broker
	app.Forwarder = forwarder.New(broker, forwarder.WithQueuePrefix(app.Config.BrokerQueuePrefix))
	app.Logger.Info("Broker: Connected",
		logging.String("type", brokerConfig.GetType()),
		logging.String("queue_prefix", app.Config.BrokerQueuePrefix),
	)
	return nil
}
