package queue

import (
	"context"
	"fmt"
	"time"

	"codeclash/internal/common"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compare-and-delete: only the holder's token may release the lock.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker hands out per-key redis locks (SET NX PX) that expire after ttl.
type Locker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewLocker(rdb *redis.Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Acquire returns the holder token when the lock was taken. It fails with
// common.ErrLockNotAcquired if someone else holds it.
func (l *Locker) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", l.prefix+key, err)
	}
	if !ok {
		return "", fmt.Errorf("lock %s: %w", l.prefix+key, common.ErrLockNotAcquired)
	}
	return token, nil
}

// Release deletes the lock if token still owns it and reports whether it did.
func (l *Locker) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.rdb, []string{l.prefix + key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", l.prefix+key, err)
	}
	return n == 1, nil
}
