// Package cache provides the TTL cache of the tool results.
//
// The entries are stored as JSON, keyed by a hash of the tool parameters,
// see Key function.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/config"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus/pkg", "cache")

// Cache is the interface of the tool results cache
type Cache interface {
	// Get returns true if the entry exists and is not expired,
	// and the value is decoded into out.
	Get(ctx context.Context, key string, out any) (bool, error)
	// Set stores the value with the TTL, ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	// Delete removes the entry
	Delete(ctx context.Context, key string) error
}

// Entry is the stored cache record
type Entry struct {
	Key       string          `json:"key"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Expired returns true if the entry has expiry before now
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// NowFunc returns the current time, can be overridden in tests
var NowFunc = time.Now

func newEntry(key string, val any, ttl time.Duration) (*Entry, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal cache value")
	}
	now := NowFunc().UTC()
	e := &Entry{
		Key:       key,
		CreatedAt: now,
		Data:      data,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		e.ExpiresAt = &exp
	}
	return e, nil
}

// Key returns the cache key for the namespace and parameters,
// in `<namespace>_<hash>` form where hash is 16 hex digits of xxhash64
// of the parameters JSON.
// Map keys are sorted by the JSON encoder, so equal parameters produce equal keys.
func Key(namespace string, params any) string {
	var js []byte
	switch v := params.(type) {
	case string:
		js = []byte(v)
	case []byte:
		js = v
	default:
		js, _ = json.Marshal(params)
	}
	return fmt.Sprintf("%s_%016x", namespace, xxhash.Sum64(js))
}

// New returns the cache for the configured backend
func New(cfg config.Cache) (Cache, error) {
	switch cfg.Backend {
	case config.CacheFile, "":
		return NewFileCache(cfg.Dir)
	case config.CacheRedis:
		client, err := NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisCache(client, cfg.Prefix), nil
	case config.CacheNone:
		return Nop(), nil
	default:
		return nil, errors.Newf("unsupported cache backend: %s", cfg.Backend)
	}
}

// NewRedisClient returns the client for the redis URL,
// the caller owns the client and must close it
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}
	return redis.NewClient(opts), nil
}

type nop struct{}

// Nop returns the cache that never hits
func Nop() Cache {
	return nop{}
}

func (nop) Get(context.Context, string, any) (bool, error) {
	return false, nil
}

func (nop) Set(context.Context, string, any, time.Duration) error {
	return nil
}

func (nop) Delete(context.Context, string) error {
	return nil
}
