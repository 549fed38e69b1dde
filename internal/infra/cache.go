//go:build !nocache

package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"chassis/internal/config"
)

func init() {
	registerBuiltin(config.CapabilityCache, newCacheHandle)
}

func newCacheHandle(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Handle, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		return newRedisCache(ctx, cfg.Cache, logger)
	default:
		return newMemoryCache(cfg.Cache), nil
	}
}

// redisCache backs the cache capability with a redis server.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Handle, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.RedisPoolSize
	opts.DialTimeout = cfg.RedisConnectTimeout()

	client := redis.NewClient(opts)

	dctx, cancel := context.WithTimeout(ctx, cfg.RedisConnectTimeout())
	defer cancel()
	if err := client.Ping(dctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Debug("redis cache connected", slog.Int("pool_size", opts.PoolSize))
	return &redisCache{client: client, ttl: cfg.TTL()}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return value, err
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Warning flags connection churn in the redis pool.
func (c *redisCache) Warning(context.Context) string {
	stats := c.client.PoolStats()
	if stats.Timeouts > 0 {
		return fmt.Sprintf("redis pool reported %d wait timeouts", stats.Timeouts)
	}
	return ""
}

func (c *redisCache) Close(context.Context) error {
	return c.client.Close()
}
