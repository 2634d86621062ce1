// Package redis implements the cache on a Redis server
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a Redis-backed cache.Cache
type Cache struct {
	client *redis.Client
	prefix string
}

// New creates a new Redis cache for the given server address.
// All keys are namespaced under prefix
func New(addr, prefix string) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		prefix: prefix,
	}
}

// Ping checks the Redis server is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("unable to get key: %w", err)
	}

	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("unable to set key: %w", err)
	}

	return nil
}

// Close closes the underlying client
func (c *Cache) Close() error {
	return c.client.Close()
}
