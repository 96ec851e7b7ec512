package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"CasaBid/internal/core/ports"
)

// RateLimiter counts requests per key in a fixed window shared by every
// instance. Once a key goes over the limit it stays blocked for the block
// duration.
type RateLimiter struct {
	rdb    *goredis.Client
	prefix string
	limit  int
	window time.Duration
	block  time.Duration
}

var _ ports.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiter(rdb *goredis.Client, prefix string, limit int, window, block time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window, block: block}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	counterKey := l.prefix + ":" + key
	blockKey := counterKey + ":blocked"

	ttl, err := l.rdb.TTL(ctx, blockKey).Result()
	if err != nil {
		return true, 0, fmt.Errorf("read block: %w", err)
	}
	if ttl > 0 {
		return false, ttl, nil
	}

	count, err := l.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		return true, 0, fmt.Errorf("increment counter: %w", err)
	}
	if count == 1 {
		l.rdb.Expire(ctx, counterKey, l.window)
	}
	if count > int64(l.limit) {
		l.rdb.Set(ctx, blockKey, "1", l.block)
		return false, l.block, nil
	}
	return true, 0, nil
}
