package cache

import (
	"context"
	"time"
)

// LayeredCache fronts a RedisCache with a small in-process L1. Reads hit
// memory first; writes go through to Redis and then refresh the L1.
type LayeredCache struct {
	l1 *MemoryCache
	l2 *RedisCache
}

// NewLayeredCache builds a two-level cache over an existing Redis backend.
func NewLayeredCache(l2 *RedisCache, opts ...MemoryOption) *LayeredCache {
	return &LayeredCache{
		l1: NewMemoryCache(opts...),
		l2: l2,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	_ = lc.l1.Set(ctx, key, value, ttl)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.l2.Get(ctx, key, dest); err != nil {
		return err
	}
	// Populate L1 with a short TTL so a hot key stays local.
	_ = lc.l1.Set(ctx, key, dest, time.Minute)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.l1.Close()
	return lc.l2.Close()
}
