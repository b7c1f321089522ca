package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rewe:resp:"

// ResponseCache stores raw upstream response bodies.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type RedisCache struct {
	client RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client RedisClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "response_cache"),
	}
}

// Key builds the redis key for a request path.
func Key(path string) string {
	return keyPrefix + path
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := c.client.Get(ctx, Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}

	c.logger.Debug("cache hit", "key", key)
	return body, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, body []byte) error {
	if err := c.client.Set(ctx, Key(key), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, string, []byte) error         { return nil }
