package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLocalCache(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute, time.Minute)

	_, found := c.Get(ctx, "missing")
	assert.False(t, found)

	value := []byte(`{"id":"evt_1"}`)
	require.NoError(t, c.Set(ctx, "evt_1", value, time.Minute))
	value[0] = 'X'

	got, found := c.Get(ctx, "evt_1")
	require.True(t, found)
	assert.Equal(t, `{"id":"evt_1"}`, string(got))
	assert.Equal(t, 1, c.ItemCount())

	require.NoError(t, c.Delete(ctx, "evt_1"))
	_, found = c.Get(ctx, "evt_1")
	assert.False(t, found)
}

func TestLocalCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(time.Minute, time.Minute)

	require.NoError(t, c.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, found := c.Get(ctx, "short")
	assert.False(t, found)
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t)
	c := NewRedisCache(client, "thin:")

	require.NoError(t, c.Set(ctx, "evt_1", []byte("payload"), time.Minute))
	assert.True(t, mr.Exists("thin:evt_1"))

	got, found := c.Get(ctx, "evt_1")
	require.True(t, found)
	assert.Equal(t, "payload", string(got))

	mr.FastForward(2 * time.Minute)
	_, found = c.Get(ctx, "evt_1")
	assert.False(t, found)
}

func TestRedisCache_ConnectionErrorIsMiss(t *testing.T) {
	mr, client := newMiniredisClient(t)
	c := NewRedisCache(client, "")
	mr.Close()

	_, found := c.Get(context.Background(), "anything")
	assert.False(t, found)
}

func TestTwoTierCache(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t)
	c := NewTwoTierCache(time.Minute, client, "thin:")

	require.NoError(t, c.Set(ctx, "evt_1", []byte("payload"), time.Hour))

	// Served from L1 even when Redis no longer has it.
	mr.Del("thin:evt_1")
	got, found := c.Get(ctx, "evt_1")
	require.True(t, found)
	assert.Equal(t, "payload", string(got))

	// L2 hits are promoted to L1.
	require.NoError(t, mr.Set("thin:evt_2", "other"))
	got, found = c.Get(ctx, "evt_2")
	require.True(t, found)
	assert.Equal(t, "other", string(got))

	require.NoError(t, c.Delete(ctx, "evt_1"))
	_, found = c.Get(ctx, "evt_1")
	assert.False(t, found)
}
