package store

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis store keeps the runs in Redis.
// The keys namespace is organized as follows:
// - `<prefix>/runstore/runs/<runID>` for the run document
// - `<prefix>/runstore/index` for the sorted set of run IDs scored by creation time

type redisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns the store in Redis, the runs expire after ttl, 0 keeps them
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) RunStore {
	return &redisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (m *redisStore) runKey(id string) string {
	return path.Join(m.prefix, "runstore", "runs", id)
}

func (m *redisStore) indexKey() string {
	return path.Join(m.prefix, "runstore", "index")
}

func (m *redisStore) Save(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run ID is required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, "failed to marshal run")
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.runKey(run.ID), data, m.ttl)
	pipe.ZAdd(ctx, m.indexKey(), redis.Z{
		Score:  float64(run.CreatedAt.UnixMilli()),
		Member: run.ID,
	})
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store run in Redis")
	}
	return nil
}

func (m *redisStore) Get(ctx context.Context, id string) (*Run, error) {
	data, err := m.client.Get(ctx, m.runKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(ErrNotFound, "run %s", id)
		}
		return nil, errors.Wrap(err, "failed to get run from Redis")
	}

	run := new(Run)
	if err = json.Unmarshal(data, run); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal run")
	}
	return run, nil
}

func (m *redisStore) List(ctx context.Context, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := m.client.ZRevRange(ctx, m.indexKey(), 0, stop).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list runs from Redis")
	}

	// the expired runs are removed from the index
	var list []string
	var expired []any
	for _, id := range ids {
		n, err := m.client.Exists(ctx, m.runKey(id)).Result()
		if err != nil {
			return nil, errors.Wrap(err, "failed to check run in Redis")
		}
		if n == 0 {
			expired = append(expired, id)
			continue
		}
		list = append(list, id)
	}
	if len(expired) > 0 {
		if err = m.client.ZRem(ctx, m.indexKey(), expired...).Err(); err != nil {
			logger.ContextKV(ctx, xlog.WARNING, "reason", "remove_expired", "err", err.Error())
		}
	}
	return list, nil
}

func (m *redisStore) Delete(ctx context.Context, id string) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.runKey(id))
	pipe.ZRem(ctx, m.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to delete run in Redis")
	}
	return nil
}
