package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// CacheService stores JSON values in Redis.
type CacheService struct {
	rdb redis.Cmdable
}

func NewCacheService(rdb redis.Cmdable) *CacheService {
	return &CacheService{rdb: rdb}
}

// Get decodes the cached value into dest.
func (c *CacheService) Get(ctx context.Context, key string, dest any) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// DeletePattern removes every key matching pattern using SCAN.
func (c *CacheService) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetOrSet reads key into dest, calling setter and caching its result on a miss.
func (c *CacheService) GetOrSet(ctx context.Context, key string, dest any, ttl time.Duration, setter func() (any, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}

	value, err := setter()
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// InvalidateContest drops the cached counters and memberships of a contest.
func (c *CacheService) InvalidateContest(ctx context.Context, contestID int64) error {
	if err := c.Delete(ctx, ContestCountKey(contestID)); err != nil {
		return err
	}
	return c.DeletePattern(ctx, "httpcache:*")
}

// InvalidateUser drops every cached membership verdict of a user.
func (c *CacheService) InvalidateUser(ctx context.Context, userID int64) error {
	return c.DeletePattern(ctx, fmt.Sprintf("subscription:%d:*", userID))
}

func ContestCountKey(contestID int64) string {
	return fmt.Sprintf("contest:%d:participants", contestID)
}

func SubscriptionKey(userID, channelID int64) string {
	return fmt.Sprintf("subscription:%d:%d", userID, channelID)
}
