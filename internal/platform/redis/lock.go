package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker hands out short-lived SET NX locks. It keeps several instances of
// the scheduler from ticking at the same time.
type Locker struct {
	rdb redis.Cmdable
}

func NewLocker(rdb redis.Cmdable) *Locker { return &Locker{rdb: rdb} }

// TryLock returns a release func when the lock was acquired and nil when
// another holder owns it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}
