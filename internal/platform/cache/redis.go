package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trendora/api/internal/platform/config"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

const defaultNamespace = "trendora:"

// NewRedisClient opens a client for cfg. Callers own Close.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// RedisCache stores JSON-encoded values under a namespace.
type RedisCache struct {
	client    redis.UniversalClient
	namespace string
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client, namespace: defaultNamespace}
}

// Get decodes the value stored at key into dst.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) error {
	data, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache: redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("cache: unmarshal %s failed: %w", key, err)
	}
	return nil
}

// Set stores value at key for ttl. A non-positive ttl is rejected.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache: ttl must be positive, got %s", ttl)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s failed: %w", key, err)
	}
	if err := c.client.Set(ctx, c.namespace+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.namespace+key).Err(); err != nil {
		return fmt.Errorf("cache: redis delete failed: %w", err)
	}
	return nil
}

// Ping is used as a readiness probe.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
