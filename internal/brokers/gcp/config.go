package gcp

import (
	"stripe-webhook-router/internal/common/validation"
)

type Config struct {
	ProjectID       string `json:"project_id" validate:"required"`
	TopicID         string `json:"topic_id" validate:"required"`
	CredentialsJSON string `json:"credentials_json"`
	CredentialsPath string `json:"credentials_path" validate:"omitempty,file"`
	// OrderingKey enables ordered delivery when set
	OrderingKey string `json:"ordering_key"`
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}

func (c *Config) GetType() string {
	return "gcp"
}

func (c *Config) GetConnectionString() string {
	return "pubsub://" + c.ProjectID + "/" + c.TopicID
}
