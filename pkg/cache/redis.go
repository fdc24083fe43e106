package cache

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// The redis cache keys namespace is `/<prefix>/cache/<key>`

// RedisCache stores the entries in Redis with SET EX
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache returns the cache backed by Redis
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

func (c *RedisCache) redisKey(key string) string {
	return path.Join(c.prefix, "cache", key)
}

// Get returns the entry, a missing key is a miss
func (c *RedisCache) Get(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to get cache entry from Redis")
	}

	e := new(Entry)
	if err = json.Unmarshal(data, e); err != nil {
		_ = c.client.Del(ctx, c.redisKey(key)).Err()
		return false, nil
	}
	// Redis expires the key, but clocks may drift
	if e.Expired(NowFunc()) {
		return false, nil
	}
	if out != nil {
		if err = json.Unmarshal(e.Data, out); err != nil {
			return false, errors.Wrapf(err, "failed to decode cache entry")
		}
	}
	return true, nil
}

// Set stores the entry, ttl <= 0 means no expiry
func (c *RedisCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	e, err := newEntry(key, val, ttl)
	if err != nil {
		return err
	}
	js, err := json.Marshal(e)
	if err != nil {
		return errors.WithStack(err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err = c.client.Set(ctx, c.redisKey(key), js, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to store cache entry in Redis")
	}
	return nil
}

// Delete removes the entry
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.redisKey(key)).Err(); err != nil {
		return errors.Wrap(err, "failed to delete cache entry from Redis")
	}
	return nil
}

// Close closes the redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
