// README: Redis SET NX lock shared across API replicas.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"freightbid/internal/errs"
	"freightbid/internal/infra"
)

const (
	keyPrefix     = "freight:lock:"
	defaultTTL    = 10 * time.Second
	retryInterval = 25 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLocker returns a Locker whose leases expire after ttl (10s when zero).
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: lock %s: %v", errs.ErrConflict, key, ctx.Err())
			}
			return nil, infra.StorageErr(fmt.Errorf("lock %s: %w", key, err))
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: lock %s: %v", errs.ErrConflict, key, ctx.Err())
		case <-ticker.C:
		}
	}

	return func() {
		// Release even if the caller's ctx is already cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{redisKey}, token).Err()
	}, nil
}
