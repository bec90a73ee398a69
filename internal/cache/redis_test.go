package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/cafe-service/internal/kv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, ttl)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestRedisGet_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	require.NoError(t, mr.Set("cart-storage:abc", `{"state":{"items":[]},"version":0}`))

	got, err := cache.Get(context.Background(), "cart-storage:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"items":[]},"version":0}`, string(got))
}

func TestRedisGet_Miss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	got, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, kv.ErrNotFound)
	assert.Nil(t, got)
}

func TestRedisGet_ServerDown(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()
	mr.Close()

	_, err := cache.Get(context.Background(), "cart-storage")
	require.Error(t, err)
	assert.NotErrorIs(t, err, kv.ErrNotFound)
	assert.ErrorContains(t, err, "redis get failed")
}

func TestRedisSet_NoTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	err := cache.Set(context.Background(), "cart-storage", []byte("payload"))
	require.NoError(t, err)

	stored, err := mr.Get("cart-storage")
	require.NoError(t, err)
	assert.Equal(t, "payload", stored)
	assert.Equal(t, time.Duration(0), mr.TTL("cart-storage"))
}

func TestRedisSet_WithTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, 15*time.Minute)
	defer cleanup()

	err := cache.Set(context.Background(), "cart-storage", []byte("payload"))
	require.NoError(t, err)

	ttl := mr.TTL("cart-storage")
	assert.True(t, ttl >= 15*time.Minute, "TTL should be at least base TTL")
	assert.True(t, ttl < 20*time.Minute, "TTL should be base + max jitter")
}

func TestRedisDelete(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t, 0)
	defer cleanup()

	require.NoError(t, mr.Set("cart-storage", "x"))
	assert.True(t, mr.Exists("cart-storage"))

	require.NoError(t, cache.Delete(context.Background(), "cart-storage"))
	assert.False(t, mr.Exists("cart-storage"))

	// Deleting non-existent key should not error
	assert.NoError(t, cache.Delete(context.Background(), "cart-storage"))
}
