package signature

import (
	"crypto/hmac"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
)

// CodeSignatureInvalid is the AppError code for every verification failure
const CodeSignatureInvalid = "signature_invalid"

// Verifier checks signed payloads. It holds no per-request state and is safe
// for concurrent use.
type Verifier struct {
	config Config
	now    func() time.Time
	logger logging.Logger
}

// Option configures a Verifier
type Option func(*Verifier)

// WithClock overrides the time source used for the tolerance check
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a new signature verifier
func NewVerifier(config Config, opts ...Option) (*Verifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	v := &Verifier{
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = logging.Component("signature")
	}
	return v, nil
}

// HeaderName returns the header signatures are read from
func (v *Verifier) HeaderName() string {
	return v.config.Header
}

// Scheme returns the accepted signature scheme
func (v *Verifier) Scheme() string {
	return v.config.Scheme
}

// HeaderValue extracts the signature header from h, case-insensitively
func (v *Verifier) HeaderValue(h http.Header) string {
	return h.Get(v.config.Header)
}

// Verify checks payload against the signature header value using secret.
// payload must be the unmodified request body.
func (v *Verifier) Verify(payload []byte, header, secret string) error {
	if secret == "" {
		return v.fail("endpoint secret is empty", header, secret)
	}
	if header == "" {
		return v.fail("missing signature header", header, secret)
	}

	parsed, err := ParseHeader(header)
	if err != nil {
		return v.fail("malformed signature header", header, secret)
	}

	candidates := parsed.Signatures[v.config.Scheme]
	if len(candidates) == 0 {
		return v.fail("no signatures found with expected scheme", header, secret)
	}

	if v.config.Tolerance > 0 && !v.withinTolerance(parsed.Timestamp) {
		return v.fail("timestamp outside the tolerance zone", header, secret)
	}

	expected := webhook.ComputeSignature(parsed.Timestamp, payload, secret)
	for _, candidate := range candidates {
		if hmac.Equal(expected, candidate) {
			return nil
		}
	}

	return v.fail("no signatures found matching the expected signature for payload", header, secret)
}

// withinTolerance compares instants so far-off timestamps cannot overflow a
// duration.
func (v *Verifier) withinTolerance(ts time.Time) bool {
	now := v.now()
	return !ts.Before(now.Add(-v.config.Tolerance)) && !ts.After(now.Add(v.config.Tolerance))
}

// VerifyRequest verifies body using the configured header from h
func (v *Verifier) VerifyRequest(body []byte, h http.Header, secret string) error {
	return v.Verify(body, v.HeaderValue(h), secret)
}

func (v *Verifier) fail(reason, header, secret string) error {
	v.logger.Debug("Signature verification failed",
		logging.String("reason", reason),
		logging.SecretLength("secret_length", secret),
		logging.SecretLength("header_length", header),
	)

	return errors.ValidationError("invalid payload or signature").
		WithCode(CodeSignatureInvalid).
		WithContext("reason", reason).
		WithContext("secret_length", len(secret)).
		WithContext("header_length", len(header))
}
