package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"syndic/pkg/platform/sentinel"
)

// Redis key prefix for registry cache entries, so a shared Redis can host
// other keyspaces without collisions.
const redisKeyPrefix = "syndic:cache:"

// RedisCache is the production ReadCache for multi-instance deployments.
// Every entry carries a TTL as a backstop against missed invalidations.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ReadCache = (*RedisCache)(nil)

// NewRedis constructs a Redis-backed read cache with the given entry TTL.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, redisKeyPrefix+key, value, c.ttl).Err()
}

// SetMulti populates several entries in one round trip via pipeline.
func (c *RedisCache) SetMulti(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for key, value := range entries {
		pipe.Set(ctx, redisKeyPrefix+key, value, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, redisKeyPrefix+key).Err()
}
