package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/cache"
	"github.com/kislikjeka/quicktrade/internal/infra/redis"
)

var _ cache.Cache = (*redis.Cache)(nil)

// setupTestClient connects to a local Redis, DB 15, and skips when none is running
func setupTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Skipping test: Redis not available")
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCache_SetAndGet(t *testing.T) {
	c := redis.NewCache(setupTestClient(t), nil)
	ctx := context.Background()

	t.Run("Set_and_Get_Price", func(t *testing.T) {
		price := decimal.RequireFromString("45678.123456789012345")
		require.NoError(t, c.Set(ctx, "btc/usd", price))

		got, found, err := c.Get(ctx, "btc/usd")
		require.NoError(t, err)
		assert.True(t, found)
		assert.True(t, price.Equal(got))
	})

	t.Run("Get_NonExistent_Price", func(t *testing.T) {
		got, found, err := c.Get(ctx, "nope/usd")
		require.NoError(t, err)
		assert.False(t, found)
		assert.True(t, got.IsZero())
	})

	t.Run("Delete_and_Clear", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "eth/usd", decimal.NewFromInt(3000)))
		require.NoError(t, c.Delete(ctx, "eth/usd"))
		_, found, _ := c.Get(ctx, "eth/usd")
		assert.False(t, found)

		require.NoError(t, c.Set(ctx, "sol/usd", decimal.NewFromInt(150)))
		require.NoError(t, c.Clear(ctx))
		_, found, _ = c.Get(ctx, "sol/usd")
		assert.False(t, found)
	})
}

func TestCache_TTL(t *testing.T) {
	c := redis.NewCacheWithTTL(setupTestClient(t), time.Second, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "btc/usd", decimal.NewFromInt(1)))
	_, found, err := c.Get(ctx, "btc/usd")
	require.NoError(t, err)
	assert.True(t, found)

	time.Sleep(1500 * time.Millisecond)

	_, found, err = c.Get(ctx, "btc/usd")
	require.NoError(t, err)
	assert.False(t, found, "Price should have expired")
}
