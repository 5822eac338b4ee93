package aws

import (
	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/validation"
)

type Config struct {
	Region          string `json:"region" validate:"required"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	// QueueURL selects SQS, TopicArn selects SNS. SQS wins when both are set.
	QueueURL string `json:"queue_url" validate:"omitempty,url"`
	TopicArn string `json:"topic_arn" validate:"omitempty,startswith=arn:"`
	// Endpoint overrides the service endpoint, e.g. for LocalStack
	Endpoint string `json:"endpoint" validate:"omitempty,url"`
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if c.QueueURL == "" && c.TopicArn == "" {
		return errors.ConfigError("either queue URL (SQS) or topic ARN (SNS) is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return errors.ConfigError("access key id and secret access key must be set together")
	}
	return nil
}

func (c *Config) GetType() string {
	return "aws"
}

func (c *Config) GetConnectionString() string {
	if c.QueueURL != "" {
		return "sqs://" + c.Region + "/" + c.QueueURL
	}
	return "sns://" + c.Region + "/" + c.TopicArn
}
