package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Revenue int64  `json:"revenue"`
	Label   string `json:"label"`
}

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

func TestSetThenGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "orders:stats", payload{Revenue: 1200, Label: "q1"}, 30*time.Second))
	assert.True(t, mr.Exists("trendora:orders:stats"))
	assert.Equal(t, 30*time.Second, mr.TTL("trendora:orders:stats"))

	var got payload
	require.NoError(t, cache.Get(ctx, "orders:stats", &got))
	assert.Equal(t, payload{Revenue: 1200, Label: "q1"}, got)
}

func TestGetMissAndExpiry(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	var got payload
	assert.ErrorIs(t, cache.Get(ctx, "absent", &got), ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "short", payload{Revenue: 1}, time.Second))
	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, cache.Get(ctx, "short", &got), ErrCacheMiss)
}

func TestGetCorruptValue(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("trendora:bad", "{not json"))

	var got payload
	err := cache.Get(context.Background(), "bad", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSetRejectsNonPositiveTTL(t *testing.T) {
	cache, _ := setupTestRedis(t)
	assert.Error(t, cache.Set(context.Background(), "k", payload{}, 0))
}

func TestDeleteAndPing(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", payload{}, time.Minute))
	require.NoError(t, cache.Delete(ctx, "k"))
	assert.False(t, mr.Exists("trendora:k"))
	require.NoError(t, cache.Ping(ctx))

	mr.Close()
	assert.Error(t, cache.Ping(ctx))
}
