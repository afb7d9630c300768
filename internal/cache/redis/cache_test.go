package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/open-builders/contest-bot/internal/common/cache"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisCaches(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("membership verdicts", func(t *testing.T) {
		mc := NewMembershipCache(client, time.Minute)

		_, found, err := mc.Get(ctx, 1, -100)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, mc.Set(ctx, 1, -100, true))
		require.NoError(t, mc.Set(ctx, 1, -200, false))

		member, found, err := mc.Get(ctx, 1, -100)
		require.NoError(t, err)
		assert.True(t, found)
		assert.True(t, member)

		member, found, err = mc.Get(ctx, 1, -200)
		require.NoError(t, err)
		assert.True(t, found)
		assert.False(t, member)

		require.NoError(t, mc.Invalidate(ctx, 1))
		_, found, err = mc.Get(ctx, 1, -100)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("participant counts", func(t *testing.T) {
		cc := NewCountCache(client, time.Minute)
		require.NoError(t, cc.Set(ctx, 9, 41))

		n, found, err := cc.Get(ctx, 9)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 41, n)

		require.NoError(t, cc.Invalidate(ctx, 9))
		_, found, err = cc.Get(ctx, 9)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("json cache service", func(t *testing.T) {
		svc := cache.NewCacheService(client)
		type payload struct{ N int }

		var got payload
		assert.ErrorIs(t, svc.Get(ctx, "k", &got), cache.ErrMiss)

		calls := 0
		setter := func() (any, error) {
			calls++
			return payload{N: 3}, nil
		}
		require.NoError(t, svc.GetOrSet(ctx, "k", &got, time.Minute, setter))
		require.NoError(t, svc.GetOrSet(ctx, "k", &got, time.Minute, setter))
		assert.Equal(t, 3, got.N)
		assert.Equal(t, 1, calls)

		require.NoError(t, svc.Set(ctx, "httpcache:GET:/a", payload{N: 1}, time.Minute))
		require.NoError(t, svc.InvalidateContest(ctx, 9))
		ok, err := svc.Exists(ctx, "httpcache:GET:/a")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
