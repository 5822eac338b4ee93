// Package locks provides the mutual exclusion used by background jobs so
// only one instance sweeps subscriptions at a time. The distributed
// implementation uses the Redlock algorithm from go-redsync.
package locks

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/redis"
)

// CodeLockHeld marks TryLock failures caused by another holder. Any other
// TryLock error means the lock backend itself failed.
const CodeLockHeld = "lock_held"

// IsHeld reports whether err is a TryLock failure caused by another holder
func IsHeld(err error) bool {
	appErr, ok := errors.As(err)
	return ok && appErr.Code == CodeLockHeld
}

func heldError(key string, cause error) error {
	return errors.ConnectionError("lock held elsewhere", cause).
		WithCode(CodeLockHeld).
		WithContext("key", key)
}

// Lock is a held lock
type Lock interface {
	Unlock(ctx context.Context) error
}

// Locker hands out non-blocking locks. TryLock fails immediately when the
// lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedsyncLocker implements Locker with Redlock
type RedsyncLocker struct {
	redsync *redsync.Redsync
}

// NewRedsyncLocker creates a distributed locker on client
func NewRedsyncLocker(client *redis.Client) (*RedsyncLocker, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	pool := goredis.NewPool(client.Raw())
	return &RedsyncLocker{redsync: redsync.New(pool)}, nil
}

type redsyncLock struct {
	mutex *redsync.Mutex
}

// TryLock makes a single acquisition attempt
func (l *RedsyncLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	mutex := l.redsync.NewMutex(fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var redisErr *redsync.RedisError
		if stderrors.As(err, &redisErr) || ctx.Err() != nil {
			return nil, errors.ConnectionError("lock backend unavailable", err).WithContext("key", key)
		}
		return nil, heldError(key, err)
	}
	return &redsyncLock{mutex: mutex}, nil
}

func (l *redsyncLock) Unlock(ctx context.Context) error {
	if _, err := l.mutex.UnlockContext(ctx); err != nil {
		return errors.InternalError("failed to release lock", err)
	}
	return nil
}

// LocalLocker implements Locker within one process
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

type localLock struct {
	locker *LocalLocker
	key    string
}

// TryLock acquires key unless another holder's lease is still valid
func (l *LocalLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expires, ok := l.held[key]; ok && l.now().Before(expires) {
		return nil, heldError(key, nil)
	}
	l.held[key] = l.now().Add(ttl)
	return &localLock{locker: l, key: key}, nil
}

func (l *localLock) Unlock(ctx context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.key)
	return nil
}
