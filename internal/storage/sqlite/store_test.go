package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/crypto"
	"stripe-webhook-router/internal/storage"
	"stripe-webhook-router/internal/subscription"
)

func openTestStore(t *testing.T, key string) (*storage.SQLStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	codec, err := storage.NewSecretCodec(key)
	require.NoError(t, err)

	store, err := Open(context.Background(), &Config{DatabasePath: path}, codec)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func newSubscription(id, endpoint string, expires time.Time) *subscription.Subscription {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &subscription.Subscription{
		ID:        id,
		Endpoint:  endpoint,
		ExpiresAt: expires.UTC().Truncate(time.Millisecond),
		Properties: map[string]interface{}{
			subscription.PropertyEndpointSecret: "whsec_test",
			subscription.PropertyAPIKey:         "sk_test_123",
			subscription.PropertyEvents:         []string{"customer.created"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.NoError(t, DefaultConfig().Validate())
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := openTestStore(t, "")
	ctx := context.Background()

	sub := newSubscription("sub_1", "shop", time.Now().Add(time.Hour))
	require.NoError(t, store.Save(ctx, sub))

	got, err := store.Get(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "shop", got.Endpoint)
	assert.Equal(t, "whsec_test", got.StringProperty(subscription.PropertyEndpointSecret))
	assert.Equal(t, []string{"customer.created"}, got.Events())
	assert.True(t, sub.ExpiresAt.Equal(got.ExpiresAt))

	byEndpoint, err := store.GetByEndpoint(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", byEndpoint.ID)

	// upsert keeps a single row
	sub.ExpiresAt = sub.ExpiresAt.Add(time.Hour)
	require.NoError(t, store.Save(ctx, sub))
	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStoreRejectsDuplicateEndpoint(t *testing.T) {
	store, _ := openTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSubscription("sub_1", "shop", time.Now().Add(time.Hour))))
	err := store.Save(ctx, newSubscription("sub_2", "shop", time.Now().Add(time.Hour)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestStoreNotFound(t *testing.T) {
	store, _ := openTestStore(t, "")
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	_, err = store.GetByEndpoint(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	err = store.Delete(ctx, "missing")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestStoreListExpiring(t *testing.T) {
	store, _ := openTestStore(t, "")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, newSubscription("lapsed", "x", now.Add(-time.Hour))))
	require.NoError(t, store.Save(ctx, newSubscription("soon", "a", now.Add(time.Hour))))
	require.NoError(t, store.Save(ctx, newSubscription("later", "b", now.Add(72*time.Hour))))

	expiring, err := store.ListExpiring(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "soon", expiring[0].ID)
}

func TestStoreDelete(t *testing.T) {
	store, _ := openTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSubscription("sub_1", "shop", time.Now().Add(time.Hour))))
	require.NoError(t, store.Delete(ctx, "sub_1"))

	_, err := store.Get(ctx, "sub_1")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestStoreEncryptsSecretsAtRest(t *testing.T) {
	store, path := openTestStore(t, "correct horse battery staple")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSubscription("sub_1", "shop", time.Now().Add(time.Hour))))

	got, err := store.Get(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "whsec_test", got.StringProperty(subscription.PropertyEndpointSecret))
	assert.Equal(t, "sk_test_123", got.StringProperty(subscription.PropertyAPIKey))

	// A store without the key sees ciphertext and refuses to hand it out.
	plain, err := Open(ctx, &Config{DatabasePath: path}, nil)
	require.NoError(t, err)
	defer plain.Close()

	_, err = plain.Get(ctx, "sub_1")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	assert.NotContains(t, err.Error(), crypto.Prefix)
}

func TestStoreHealth(t *testing.T) {
	store, _ := openTestStore(t, "")
	assert.NoError(t, store.Health(context.Background()))
}
