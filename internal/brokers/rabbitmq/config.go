package rabbitmq

import (
	"net/url"

	"stripe-webhook-router/internal/common/validation"
)

type Config struct {
	URL      string `json:"url" validate:"required,url"`
	PoolSize int    `json:"pool_size" validate:"min=1,max=100"`
	// Exchange is optional; messages go straight to the queue when empty
	Exchange string `json:"exchange"`
}

func (c *Config) Validate() error {
	if c.PoolSize <= 0 {
		c.PoolSize = 5
	}
	return validation.ValidateStruct(c)
}

func (c *Config) GetConnectionString() string {
	// credentials stay out of logs
	if parsedURL, err := url.Parse(c.URL); err == nil {
		return "rabbitmq://" + parsedURL.Host
	}
	return "rabbitmq://***"
}

func (c *Config) GetType() string {
	return "rabbitmq"
}
