package cache

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/cafe-service/internal/kv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisContainer(t *testing.T, ttl time.Duration) (*RedisCache, *redis.Client) {
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	ctx := context.Background()

	redisC, err := testcontainers.Run(
		ctx, "redis:7",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, redisC)
	require.NoError(t, err)

	endpoint, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, ttl), client
}

func TestRedisContainer_RoundTrip(t *testing.T) {
	cache, client := setupRedisContainer(t, time.Hour)
	ctx := context.Background()
	payload := []byte(`{"state":{"items":[]},"version":0}`)

	require.NoError(t, cache.Set(ctx, "cart-storage:it", payload))

	got, err := cache.Get(ctx, "cart-storage:it")
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))

	ttl, err := client.TTL(ctx, "cart-storage:it").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, cache.Delete(ctx, "cart-storage:it"))
	_, err = cache.Get(ctx, "cart-storage:it")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}
