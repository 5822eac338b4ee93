package kafka

import (
	"strings"
	"time"

	"stripe-webhook-router/internal/common/errors"
)

type Config struct {
	Brokers          []string
	ClientID         string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Timeout          time.Duration
}

var (
	validProtocols  = []string{"PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL"}
	validMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}
)

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.ConfigError("Kafka brokers are required")
	}
	for _, broker := range c.Brokers {
		if strings.TrimSpace(broker) == "" {
			return errors.ConfigError("empty Kafka broker address")
		}
	}

	if c.ClientID == "" {
		c.ClientID = "stripe-webhook-router"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.SecurityProtocol == "" {
		c.SecurityProtocol = "PLAINTEXT"
	}
	if !contains(validProtocols, c.SecurityProtocol) {
		return errors.ConfigError("invalid security protocol: " + c.SecurityProtocol)
	}

	if strings.HasPrefix(c.SecurityProtocol, "SASL_") {
		if c.SASLMechanism == "" {
			c.SASLMechanism = "PLAIN"
		}
		if !contains(validMechanisms, c.SASLMechanism) {
			return errors.ConfigError("invalid SASL mechanism: " + c.SASLMechanism)
		}
		if c.SASLUsername == "" || c.SASLPassword == "" {
			return errors.ConfigError("SASL username and password are required for SASL authentication")
		}
	}
	return nil
}

func (c *Config) GetType() string {
	return "kafka"
}

func (c *Config) GetConnectionString() string {
	return strings.Join(c.Brokers, ",")
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
