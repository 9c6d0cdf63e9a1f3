package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/whereabout/gate-ticketing/internal/adapters/redis"
	"github.com/whereabout/gate-ticketing/internal/observability"
)

// RateLimiter throttles scan submissions per station and per source address
// using redis INCR/EXPIRE counters.
type RateLimiter struct {
	redis *redisadapter.Client
}

func NewRateLimiter(redis *redisadapter.Client) *RateLimiter {
	return &RateLimiter{redis: redis}
}

func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	pipe := rl.redis.Raw().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open when redis is unreachable.
		return true
	}

	allowed := incr.Val() <= int64(rate)
	if !allowed {
		observability.RateLimitExceeded.Inc()
	}
	return allowed
}
