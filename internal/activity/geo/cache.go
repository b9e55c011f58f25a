package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved locations keyed by IP.
type Cache interface {
	Get(ctx context.Context, ip string) (location string, found bool, err error)
	Set(ctx context.Context, ip, location string, ttl time.Duration) error
}

const cacheKeyPrefix = "reloop:geo:"

// RedisCache is a Cache backed by Redis string keys with a TTL.
type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, ip string) (string, bool, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+ip).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get geo cache entry: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, ip, location string, ttl time.Duration) error {
	if err := c.client.Set(ctx, cacheKeyPrefix+ip, location, ttl).Err(); err != nil {
		return fmt.Errorf("set geo cache entry: %w", err)
	}
	return nil
}
