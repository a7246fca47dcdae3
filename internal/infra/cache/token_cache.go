package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-redis/redis/v8"
)

// RedisTokenCache stores short-lived strings in Redis so every replica shares them.
type RedisTokenCache struct {
	client *redis.Client
	prefix string
}

func NewRedisTokenCache(client *redis.Client, prefix string) *RedisTokenCache {
	return &RedisTokenCache{client: client, prefix: prefix}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error reading cached token: %w", err)
	}
	return v, true, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("error caching token: %w", err)
	}
	return nil
}

// MemoryTokenCache keeps tokens in a ristretto cache local to the process.
type MemoryTokenCache struct {
	cache *ristretto.Cache[string, string]
}

func NewMemoryTokenCache() (*MemoryTokenCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating token cache: %w", err)
	}
	return &MemoryTokenCache{cache: c}, nil
}

func (c *MemoryTokenCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.cache.Get(key)
	return v, ok, nil
}

func (c *MemoryTokenCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	// Sets are buffered; wait so the next Get sees the value.
	c.cache.Wait()
	return nil
}

func (c *MemoryTokenCache) Close() {
	c.cache.Close()
}
