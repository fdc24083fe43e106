package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	City  string  `json:"city"`
	Temp  float64 `json:"temp"`
	Items []string
}

func TestKey(t *testing.T) {
	k1 := cache.Key("weather", map[string]any{"city": "Paris", "units": "metric"})
	k2 := cache.Key("weather", map[string]any{"units": "metric", "city": "Paris"})
	k3 := cache.Key("weather", map[string]any{"city": "Rome", "units": "metric"})

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Regexp(t, regexp.MustCompile(`^weather_[0-9a-f]{16}$`), k1)

	assert.Equal(t, cache.Key("ns", `{"a":1}`), cache.Key("ns", []byte(`{"a":1}`)))
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := cache.NewFileCache(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, c.Dir())

	val := result{City: gofakeit.City(), Temp: 21.5, Items: []string{"a", "b"}}
	key := cache.Key("test", val)

	var out result
	found, err := c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, key, val, time.Hour))
	assert.FileExists(t, filepath.Join(dir, key+".json"))

	found, err = c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, val, out)

	// overwrite
	val.Temp = 10
	require.NoError(t, c.Set(ctx, key, val, time.Hour))
	found, err = c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 10.0, out.Temp)

	require.NoError(t, c.Delete(ctx, key))
	require.NoError(t, c.Delete(ctx, key))
	found, err = c.Get(ctx, key, &out)
	require.NoError(t, err)
	assert.False(t, found)

	// no temp files left behind
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = cache.NewFileCache("")
	assert.EqualError(t, err, "cache folder is not specified")
}

func TestFileCache_Expiry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { cache.NowFunc = time.Now })

	c, err := cache.NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "short", "v1", time.Minute))
	require.NoError(t, c.Set(ctx, "long", "v2", time.Hour))
	require.NoError(t, c.Set(ctx, "forever", "v3", 0))

	var s string
	found, err := c.Get(ctx, "short", &s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", s)

	// exactly at expiry is still valid
	now = now.Add(time.Minute)
	found, err = c.Get(ctx, "short", &s)
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(time.Second)
	found, err = c.Get(ctx, "short", &s)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoFileExists(t, filepath.Join(dir, "short.json"))

	// corrupt file
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o600))
	found, err = c.Get(ctx, "bad", &s)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoFileExists(t, filepath.Join(dir, "bad.json"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad2.json"), []byte("garbage"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600))

	now = now.Add(2 * time.Hour)
	count, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoFileExists(t, filepath.Join(dir, "long.json"))
	assert.FileExists(t, filepath.Join(dir, "forever.json"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	found, err = c.Get(ctx, "forever", &s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v3", s)
}

func TestFileCache_KeySanitized(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := cache.NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "../escape/key", 1, time.Minute))
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape"))
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	c := cache.Nop()
	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	found, err := c.Get(ctx, "k", nil)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestNew(t *testing.T) {
	c, err := cache.New(config.Cache{Backend: config.CacheFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &cache.FileCache{}, c)

	c, err = cache.New(config.Cache{Backend: config.CacheNone})
	require.NoError(t, err)
	assert.Equal(t, cache.Nop(), c)

	c, err = cache.New(config.Cache{Backend: config.CacheRedis, RedisURL: "redis://localhost:6379/0"})
	require.NoError(t, err)
	assert.IsType(t, &cache.RedisCache{}, c)

	_, err = cache.New(config.Cache{Backend: config.CacheRedis, RedisURL: "http://nope"})
	assert.Error(t, err)

	_, err = cache.New(config.Cache{Backend: "memcached"})
	assert.EqualError(t, err, "unsupported cache backend: memcached")
}
