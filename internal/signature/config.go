package signature

import (
	"strings"
	"time"

	"stripe-webhook-router/internal/common/errors"
)

const (
	// DefaultHeader is the header Stripe delivers signatures in
	DefaultHeader = "Stripe-Signature"
	// DefaultScheme is the only signature scheme Stripe currently signs live payloads with
	DefaultScheme = "v1"
	// DefaultTolerance matches Stripe's documented replay window
	DefaultTolerance = 300 * time.Second
)

// Config controls how signatures are located and checked
type Config struct {
	// Header is the request header carrying the signature, matched case-insensitively
	Header string
	// Scheme is the signature entry key accepted, e.g. "v1"
	Scheme string
	// Tolerance is the maximum allowed clock skew. Zero disables the timestamp check.
	Tolerance time.Duration
}

// DefaultConfig returns the Stripe defaults
func DefaultConfig() Config {
	return Config{
		Header:    DefaultHeader,
		Scheme:    DefaultScheme,
		Tolerance: DefaultTolerance,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if strings.TrimSpace(c.Header) == "" {
		return errors.ConfigError("signature header name is required")
	}
	if strings.TrimSpace(c.Scheme) == "" {
		return errors.ConfigError("signature scheme is required")
	}
	if strings.ContainsAny(c.Scheme, "=,") {
		return errors.ConfigError("signature scheme must not contain '=' or ','")
	}
	if c.Tolerance < 0 {
		return errors.ConfigError("signature tolerance must not be negative")
	}
	return nil
}
