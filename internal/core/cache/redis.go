package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	rds "breederchat/internal/platform/redis"
)

const redisKeyPrefix = "breeders:"

type Redis struct {
	redis *rds.Service
	ttl   time.Duration
}

// NewRedis stores entries as JSON under breeders:<url>. A zero ttl disables expiry.
func NewRedis(r *rds.Service, ttl time.Duration) *Redis {
	return &Redis{redis: r, ttl: ttl}
}

func (c *Redis) Lookup(ctx context.Context, url string) (Entry, bool, error) {
	var e Entry
	if err := c.redis.CacheGet(ctx, redisKeyPrefix+url, &e); err != nil {
		if errors.Is(err, rds.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("redis lookup %s: %w", url, err)
	}
	return e, true, nil
}

func (c *Redis) Upsert(ctx context.Context, e Entry) error {
	if err := c.redis.CacheSet(ctx, redisKeyPrefix+e.URL, e, c.ttl); err != nil {
		return fmt.Errorf("redis upsert %s: %w", e.URL, err)
	}
	return nil
}
