// Package aws publishes messages to an SQS queue or an SNS topic.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"stripe-webhook-router/internal/brokers"
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
)

// SQSAPI is the part of the SQS client the broker calls
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SNSAPI is the part of the SNS client the broker calls
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	GetTopicAttributes(ctx context.Context, params *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

type Broker struct {
	config *Config
	sqs    SQSAPI
	sns    SNSAPI
	logger logging.Logger
}

// NewBroker loads the AWS configuration. Static credentials are used when
// configured, otherwise the default provider chain.
func NewBroker(ctx context.Context, config *Config) (*Broker, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, config.SessionToken),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to load AWS config", err)
	}

	sqsClient := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})
	snsClient := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
	})

	return NewBrokerWithClients(config, sqsClient, snsClient), nil
}

// NewBrokerWithClients creates a broker over existing service clients
func NewBrokerWithClients(config *Config, sqsClient SQSAPI, snsClient SNSAPI) *Broker {
	return &Broker{
		config: config,
		sqs:    sqsClient,
		sns:    snsClient,
		logger: logging.Component("aws_broker"),
	}
}

func (b *Broker) Name() string {
	return "aws"
}

func (b *Broker) Publish(ctx context.Context, message *brokers.Message) error {
	if b.config.QueueURL != "" {
		return b.publishToSQS(ctx, message)
	}
	return b.publishToSNS(ctx, message)
}

func (b *Broker) publishToSQS(ctx context.Context, message *brokers.Message) error {
	attrs := make(map[string]sqstypes.MessageAttributeValue)
	for k, v := range messageAttributes(message) {
		attrs[k] = sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}

	out, err := b.sqs.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(b.config.QueueURL),
		MessageBody:       aws.String(string(message.Body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return errors.ConnectionError("failed to send message to SQS", err)
	}

	b.logger.Debug("Message sent to SQS",
		logging.String("message_id", aws.ToString(out.MessageId)),
		logging.String("queue", message.Queue),
	)
	return nil
}

func (b *Broker) publishToSNS(ctx context.Context, message *brokers.Message) error {
	attrs := make(map[string]snstypes.MessageAttributeValue)
	for k, v := range messageAttributes(message) {
		attrs[k] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}

	out, err := b.sns.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(b.config.TopicArn),
		Message:           aws.String(string(message.Body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return errors.ConnectionError("failed to publish message to SNS", err)
	}

	b.logger.Debug("Message published to SNS",
		logging.String("message_id", aws.ToString(out.MessageId)),
		logging.String("queue", message.Queue),
	)
	return nil
}

// messageAttributes adds the queue name, which carries the channel, to the
// flat attributes. SQS and SNS allow at most 10 attributes per message.
func messageAttributes(message *brokers.Message) map[string]string {
	attrs := message.Attributes()
	if message.Queue != "" {
		attrs["queue"] = message.Queue
	}
	return attrs
}

func (b *Broker) Health(ctx context.Context) error {
	if b.config.QueueURL != "" {
		_, err := b.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(b.config.QueueURL),
			AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameApproximateNumberOfMessages},
		})
		if err != nil {
			return errors.ConnectionError("SQS queue unreachable", err)
		}
		return nil
	}

	if _, err := b.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(b.config.TopicArn)}); err != nil {
		return errors.ConnectionError("SNS topic unreachable", err)
	}
	return nil
}

// Close is a no-op; SDK clients hold no resources that need releasing
func (b *Broker) Close() error {
	return nil
}

type Factory struct{}

func (Factory) GetType() string {
	return "aws"
}

func (Factory) Create(config brokers.Config) (brokers.Broker, error) {
	c, ok := config.(*Config)
	if !ok {
		return nil, brokers.WrongConfig("aws")
	}
	return NewBroker(context.Background(), c)
}
