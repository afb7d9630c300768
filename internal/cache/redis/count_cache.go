package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/open-builders/contest-bot/internal/common/cache"
)

// CountCache holds short-lived participant counts. The ledger stays
// authoritative; entries are dropped on every successful join.
type CountCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewCountCache(client redis.Cmdable, ttl time.Duration) *CountCache {
	return &CountCache{client: client, ttl: ttl}
}

func (c *CountCache) Get(ctx context.Context, contestID int64) (int, bool, error) {
	n, err := c.client.Get(ctx, cache.ContestCountKey(contestID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return n, true, nil
}

func (c *CountCache) Set(ctx context.Context, contestID int64, n int) error {
	return c.client.Set(ctx, cache.ContestCountKey(contestID), n, c.ttl).Err()
}

func (c *CountCache) Invalidate(ctx context.Context, contestID int64) error {
	return c.client.Del(ctx, cache.ContestCountKey(contestID)).Err()
}
