package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stripe-webhook-router/internal/redis"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	lock, err := locker.TryLock(ctx, "refresh", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "refresh", time.Minute)
	assert.Error(t, err)
	assert.True(t, IsHeld(err))

	_, err = locker.TryLock(ctx, "other", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, lock.Unlock(ctx))
	_, err = locker.TryLock(ctx, "refresh", time.Minute)
	assert.NoError(t, err)
}

func TestLocalLocker_LeaseExpires(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()
	now := time.Unix(1700000000, 0)
	locker.now = func() time.Time { return now }

	_, err := locker.TryLock(ctx, "refresh", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = locker.TryLock(ctx, "refresh", time.Minute)
	assert.NoError(t, err)
}

func TestRedsyncLocker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	locker, err := NewRedsyncLocker(client)
	require.NoError(t, err)

	ctx := context.Background()
	lock, err := locker.TryLock(ctx, "subscription-refresh", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:subscription-refresh"))

	_, err = locker.TryLock(ctx, "subscription-refresh", 10*time.Second)
	assert.Error(t, err)
	assert.True(t, IsHeld(err))

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists("lock:subscription-refresh"))
}

func TestNewRedsyncLocker_NilClient(t *testing.T) {
	_, err := NewRedsyncLocker(nil)
	assert.Error(t, err)
}

func TestRedsyncLocker_BackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	locker, err := NewRedsyncLocker(client)
	require.NoError(t, err)

	mr.Close()

	_, err = locker.TryLock(context.Background(), "subscription-refresh", 10*time.Second)
	require.Error(t, err)
	assert.False(t, IsHeld(err))
}
