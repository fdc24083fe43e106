package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/effective-security/nexus/pkg/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rediscon "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}

	ctx := context.Background()
	redisContainer, err := rediscon.Run(ctx, "redis:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, redisContainer.Terminate(ctx))
	})

	host, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	options, err := redis.ParseURL(host)
	require.NoError(t, err)

	client := redis.NewClient(options)
	require.NoError(t, client.Ping(ctx).Err(), "failed to connect to Redis")

	root := fmt.Sprintf("test-%d", time.Now().Unix())
	c := cache.NewRedisCache(client, root)

	key := cache.Key("pubmed", map[string]any{"term": "aspirin"})

	var out []string
	found, err := c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, key, []string{"1", "2"}, time.Minute))
	found, err = c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"1", "2"}, out)

	ttl, err := client.TTL(ctx, root+"/cache/"+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, c.Set(ctx, "forever", 1, 0))
	ttl, err = client.TTL(ctx, root+"/cache/forever").Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)

	// corrupt value is a miss
	require.NoError(t, client.Set(ctx, root+"/cache/bad", "{", 0).Err())
	found, err = c.Get(ctx, "bad", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Delete(ctx, key))
	found, err = c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, found)
}
