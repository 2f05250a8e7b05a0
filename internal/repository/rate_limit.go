package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"rental_marketplace/pkg/logger"
)

// RateLimitRepository keeps fixed-window counters in Redis.
type RateLimitRepository interface {
	// Increment bumps the counter for key and returns the new value. The
	// window starts with the first hit.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to increment rate limit counter", "error", err, "key", key)
		return 0, fmt.Errorf("increment rate limit: %w", err)
	}
	return incr.Val(), nil
}
