package dispatch

import (
	"context"

	"stripe-webhook-router/internal/subscription"
)

// CredentialSource supplies the API key used to resolve thin events
type CredentialSource interface {
	APIKey(ctx context.Context, sub *subscription.Subscription) (string, error)
}

// SubscriptionCredentials reads the api_key property of the subscription
type SubscriptionCredentials struct{}

func (SubscriptionCredentials) APIKey(ctx context.Context, sub *subscription.Subscription) (string, error) {
	return sub.StringProperty(subscription.PropertyAPIKey), nil
}

// StaticCredentials is an account-wide provider key from configuration
type StaticCredentials string

func (s StaticCredentials) APIKey(ctx context.Context, sub *subscription.Subscription) (string, error) {
	return string(s), nil
}

// CredentialChain returns the first non-empty key of its sources
type CredentialChain []CredentialSource

func (c CredentialChain) APIKey(ctx context.Context, sub *subscription.Subscription) (string, error) {
	for _, source := range c {
		key, err := source.APIKey(ctx, sub)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	return "", nil
}

// DefaultCredentials prefers the subscription key and falls back to providerKey
func DefaultCredentials(providerKey string) CredentialChain {
	chain := CredentialChain{SubscriptionCredentials{}}
	if providerKey != "" {
		chain = append(chain, StaticCredentials(providerKey))
	}
	return chain
}
