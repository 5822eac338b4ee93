// Package cache stores resolved provider responses, in process with
// patrickmn/go-cache or shared across instances in Redis.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// Cache stores opaque byte values with a TTL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, found := l.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	return data, ok
}

// Set stores a copy of value in the local cache
func (l *LocalCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	l.cache.Set(key, stored, ttl)
	return nil
}

// Delete removes a value from the local cache
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// ItemCount returns the number of cached items, including expired ones not yet evicted
func (l *LocalCache) ItemCount() int {
	return l.cache.ItemCount()
}

// RedisCache wraps go-redis for distributed caching
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a value from Redis. Connection errors are reported as misses.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a value in Redis
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err()
}

// Delete removes a value from Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// TwoTierCache fronts Redis with a short-lived local cache
type TwoTierCache struct {
	l1    *LocalCache
	l2    *RedisCache
	l1TTL time.Duration
}

// NewTwoTierCache creates a cache with local L1 and Redis L2
func NewTwoTierCache(l1TTL time.Duration, redisClient *redis.Client, keyPrefix string) *TwoTierCache {
	return &TwoTierCache{
		l1:    NewLocalCache(l1TTL, 2*l1TTL),
		l2:    NewRedisCache(redisClient, keyPrefix),
		l1TTL: l1TTL,
	}
}

// Get checks L1 first, then L2
func (t *TwoTierCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, found := t.l1.Get(ctx, key); found {
		return val, true
	}

	val, found := t.l2.Get(ctx, key)
	if found {
		_ = t.l1.Set(ctx, key, val, t.l1TTL)
	}
	return val, found
}

// Set stores in both tiers; L2 is the source of truth
func (t *TwoTierCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	l1TTL := ttl
	if l1TTL <= 0 || l1TTL > t.l1TTL {
		l1TTL = t.l1TTL
	}
	return t.l1.Set(ctx, key, value, l1TTL)
}

// Delete removes from both tiers
func (t *TwoTierCache) Delete(ctx context.Context, key string) error {
	_ = t.l1.Delete(ctx, key)
	return t.l2.Delete(ctx, key)
}
