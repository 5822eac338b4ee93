package ratelimit

import (
	"math"
	"time"

	"stripe-webhook-router/internal/common/errors"
)

// BackendType selects the limiter implementation
type BackendType string

const (
	BackendLocal       BackendType = "local"
	BackendDistributed BackendType = "distributed"
)

// Config configures a limiter
type Config struct {
	Enabled           bool          `json:"enabled"`
	RequestsPerSecond float64       `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	Type              BackendType   `json:"type"`
	KeyPrefix         string        `json:"key_prefix,omitempty"`
	Window            time.Duration `json:"window,omitempty"`
	CleanupPeriod     time.Duration `json:"cleanup_period,omitempty"`
}

// Validate applies defaults and checks the configuration
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond < 0 {
		return errors.ConfigError("requests per second must not be negative")
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}
	if c.BurstSize <= 0 {
		c.BurstSize = int(math.Ceil(c.RequestsPerSecond))
	}
	if c.Type == "" {
		c.Type = BackendLocal
	}
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.CleanupPeriod <= 0 {
		c.CleanupPeriod = 5 * time.Minute
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "ratelimit:"
	}

	switch c.Type {
	case BackendLocal, BackendDistributed:
		return nil
	default:
		return errors.ConfigError("unknown rate limit backend " + string(c.Type))
	}
}

// WindowLimit is the number of requests allowed per Window by the
// distributed backend
func (c *Config) WindowLimit() int {
	limit := int(math.Ceil(c.RequestsPerSecond * c.Window.Seconds()))
	if limit < c.BurstSize {
		limit = c.BurstSize
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
