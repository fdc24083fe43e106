package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/effective-security/nexus/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(redisContainer))
	})

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)
	require.NoError(t, client.Ping(ctx).Err(), "failed to connect to Redis")

	root := fmt.Sprintf("test-%d", time.Now().Unix())
	testRunStore(t, store.NewRedisStore(client, root, 0))

	// expired runs are dropped from the list
	s := store.NewRedisStore(client, root+"-ttl", time.Minute)
	require.NoError(t, s.Save(ctx, &store.Run{ID: "old", CreatedAt: time.Now()}))
	ttl, err := client.TTL(ctx, root+"-ttl/runstore/runs/old").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, client.Del(ctx, root+"-ttl/runstore/runs/old").Err())
	ids, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := client.ZCard(ctx, root+"-ttl/runstore/index").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
