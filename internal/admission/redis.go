package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the default Redis hash key used to track
// admitted stream hashes.
const DefaultRedisKey = "logserver:admitted_hashes"

// RedisConfig holds Redis connection configuration for the shared
// admission-cache backend.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g. "redis://localhost:6379").
	URL string

	// Key is the Redis hash key used to store admitted hashes
	// (defaults to DefaultRedisKey).
	Key string
}

// RedisCache implements Cache against a Redis hash, for operators
// running several collector instances behind a shared Redis who want
// admission state to agree across instances. The sweeper remains the
// source of truth regardless of which backend a given instance uses.
type RedisCache struct {
	client    *redis.Client
	key       string
	maxHashes int
}

// NewRedis creates a Redis-backed admission cache and verifies
// connectivity with a ping.
func NewRedis(cfg RedisConfig, maxHashes int) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}

	slog.Info("redis admission cache connected", "key", key, "max_hashes", maxHashes)

	return &RedisCache{client: client, key: key, maxHashes: maxHashes}, nil
}

// Admit reports whether hash is allowed to occupy a cache slot. It is
// not linearizable across instances — HLen and HSetNX are separate
// round trips — but the sweeper's periodic reseed bounds any drift to
// one sweep interval, which the advisory nature of this cache already
// tolerates.
func (c *RedisCache) Admit(hash string) bool {
	ctx := context.Background()

	exists, err := c.client.HExists(ctx, c.key, hash).Result()
	if err == nil && exists {
		return true
	}

	if c.maxHashes > 0 {
		n, err := c.client.HLen(ctx, c.key).Result()
		if err != nil {
			slog.Warn("admission: redis hlen failed, admitting optimistically", "error", err)
		} else if n >= int64(c.maxHashes) {
			return false
		}
	}

	if err := c.client.HSetNX(ctx, c.key, hash, 1).Err(); err != nil {
		slog.Warn("admission: redis hsetnx failed, admitting optimistically", "error", err)
	}
	return true
}

func (c *RedisCache) Reseed(pairs []HashCount) {
	ctx := context.Background()

	fresh := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		fresh[p.Hash] = 1
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key)
	if len(fresh) > 0 {
		pipe.HSet(ctx, c.key, fresh)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("admission: redis reseed failed", "error", err)
	}
}

func (c *RedisCache) Len() int {
	n, err := c.client.HLen(context.Background(), c.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
