package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/open-builders/contest-bot/internal/common/cache"
)

// MembershipCache remembers subscription verdicts per (user, channel).
type MembershipCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewMembershipCache(client redis.Cmdable, ttl time.Duration) *MembershipCache {
	return &MembershipCache{client: client, ttl: ttl}
}

// Get returns the cached verdict and whether one was found.
func (c *MembershipCache) Get(ctx context.Context, userID, channelID int64) (member bool, found bool, err error) {
	v, err := c.client.Get(ctx, cache.SubscriptionKey(userID, channelID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, err
	}
	member, err = strconv.ParseBool(v)
	if err != nil {
		return false, false, nil
	}
	return member, true, nil
}

func (c *MembershipCache) Set(ctx context.Context, userID, channelID int64, member bool) error {
	return c.client.Set(ctx, cache.SubscriptionKey(userID, channelID), strconv.FormatBool(member), c.ttl).Err()
}

// Invalidate forgets every verdict cached for the user.
func (c *MembershipCache) Invalidate(ctx context.Context, userID int64) error {
	return cache.NewCacheService(c.client).InvalidateUser(ctx, userID)
}
