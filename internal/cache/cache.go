// Package cache stores short-lived JSON snapshots of backend content.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Proton-105/studio-booking-bot/pkg/redis"
)

// Cache keeps JSON-encoded values for a limited time.
type Cache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// RedisCache shares cached content between bot replicas.
type RedisCache struct {
	kv     redis.KV
	prefix string
}

// NewRedisCache constructs a cache backed by the provided key-value client.
func NewRedisCache(kv redis.KV, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "cache"
	}
	return &RedisCache{kv: kv, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.kv == nil {
		return false, nil
	}

	data, err := c.kv.Get(ctx, c.key(key))
	if err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get cached %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}

	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.kv == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s for cache: %w", key, err)
	}

	if err := c.kv.Set(ctx, c.key(key), payload, ttl); err != nil {
		return fmt.Errorf("set cached %s: %w", key, err)
	}

	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, key string) error {
	if c == nil || c.kv == nil {
		return nil
	}

	if err := c.kv.Delete(ctx, c.key(key)); err != nil {
		return fmt.Errorf("delete cached %s: %w", key, err)
	}

	return nil
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCache is the single-process fallback used when Redis is disabled.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(item.expiresAt) {
		return false, nil
	}

	if err := json.Unmarshal(item.payload, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s for cache: %w", key, err)
	}

	c.mu.Lock()
	c.items[key] = entry{payload: payload, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}
