// README: Per-caller rate limiting (ulule/limiter) backed by Redis or memory.
package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewLimiterStore returns a Redis store shared by all replicas, or an
// in-process store when rdb is nil.
func NewLimiterStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	if rdb == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix}), nil
	}
	store, err := redisstore.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("create limiter store: %w", err)
	}
	return store, nil
}

// RateLimit limits requests per authenticated caller, falling back to client IP.
// rate uses the limiter format, e.g. "30-M".
func RateLimit(rate string, store limiter.Store) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	return ginlimiter.NewMiddleware(limiter.New(store, r), ginlimiter.WithKeyGetter(func(c *gin.Context) string {
		if uid := CallerUID(c); uid != "" {
			return uid
		}
		return c.ClientIP()
	})), nil
}
