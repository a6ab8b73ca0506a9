package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// FetchCache keeps cacheable tool payloads in Redis.
type FetchCache struct {
	client *redis.Client
	prefix string
}

func NewFetchCache(client *redis.Client, prefix string) *FetchCache {
	return &FetchCache{client: client, prefix: prefix}
}

func (c *FetchCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set stores value for ttl. A non-positive ttl stores nothing.
func (c *FetchCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}
