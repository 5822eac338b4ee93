package resolver

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/rawrequest"

	"stripe-webhook-router/internal/common/errors"
	commonhttp "stripe-webhook-router/internal/common/http"
)

// DefaultAPIBase is the provider API origin
const DefaultAPIBase = "https://api.stripe.com"

// EventsClient fetches full v2 events by id. The API key is supplied per call
// so one client can serve every subscription.
type EventsClient interface {
	RetrieveEvent(ctx context.Context, apiKey, eventID string) ([]byte, error)
}

// StripeEventsClient calls GET /v2/core/events/{id} through the stripe-go
// raw request backend. Retries are disabled; the resolver owns the
// failure policy through its circuit breaker.
type StripeEventsClient struct {
	backend    stripe.RawRequestBackend
	apiVersion string
}

// NewStripeEventsClient creates a client for baseURL. An empty baseURL uses
// DefaultAPIBase and an empty apiVersion uses the SDK's pinned version.
func NewStripeEventsClient(baseURL, apiVersion string, timeout time.Duration) *StripeEventsClient {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		HTTPClient:        commonhttp.NewHTTPClient(commonhttp.WithTimeout(timeout)),
		MaxNetworkRetries: stripe.Int64(0),
		EnableTelemetry:   stripe.Bool(false),
		// the SDK logger writes response samples to stderr
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelNull},
	})

	return &StripeEventsClient{
		backend:    backend.(stripe.RawRequestBackend),
		apiVersion: apiVersion,
	}
}

// RetrieveEvent returns the raw JSON of the event
func (c *StripeEventsClient) RetrieveEvent(ctx context.Context, apiKey, eventID string) ([]byte, error) {
	if apiKey == "" {
		return nil, errors.AuthError("api key is required")
	}

	params := &stripe.RawParams{Params: stripe.Params{Context: ctx}}
	if c.apiVersion != "" {
		params.Headers = http.Header{"Stripe-Version": []string{c.apiVersion}}
	}

	client := rawrequest.Client{B: c.backend, Key: apiKey}
	resp, err := client.RawRequest(http.MethodGet, "/v2/core/events/"+url.PathEscape(eventID), "", params)
	if err != nil {
		return nil, mapStripeError(ctx, err)
	}
	return resp.RawJSON, nil
}

// mapStripeError converts SDK errors into the AppError taxonomy. Error
// messages come from the API envelope and never include the key.
func mapStripeError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.TimeoutError("event retrieval")
	}

	var stripeErr *stripe.Error
	if !stderrors.As(err, &stripeErr) {
		// transport failures and non-JSON error bodies
		return errors.ConnectionError("events API request failed", err)
	}

	status := stripeErr.HTTPStatusCode
	message := stripeErr.Msg
	if message == "" {
		message = http.StatusText(status)
	}
	message = fmt.Sprintf("events API returned %d: %s", status, message)

	var appErr *errors.AppError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		appErr = errors.AuthError(message)
	case status == http.StatusNotFound:
		appErr = &errors.AppError{Type: errors.ErrTypeNotFound, Message: message}
	case status == http.StatusTooManyRequests:
		appErr = &errors.AppError{Type: errors.ErrTypeRateLimit, Message: message}
	case status >= 500:
		appErr = errors.ConnectionError(message, nil)
	default:
		appErr = errors.ValidationError(message)
	}

	if stripeErr.Code != "" {
		appErr = appErr.WithCode(string(stripeErr.Code))
	}
	if stripeErr.RequestID != "" {
		appErr = appErr.WithContext("request_id", stripeErr.RequestID)
	}
	return appErr.WithContext("status", status)
}
