package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/effective-security/nexus/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoad(t *testing.T) {
	t.Setenv("NEXUS_TEST_WEATHER_KEY", "weather-key")
	t.Setenv("AWS_REGION", "")
	t.Setenv("NCBI_API_KEY", "ncbi-key")

	cfg, err := config.Load("testdata/nexus.yaml", "")
	require.NoError(t, err)

	assert.Equal(t, config.CacheFile, cfg.Cache.Backend)
	assert.Equal(t, "/tmp/nexus-test-cache", cfg.Cache.Dir)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL.Std())
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout.Std())
	assert.Equal(t, 2, cfg.HTTP.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.HTTP.RetryDelay.Std())
	assert.Equal(t, "us-west-2", cfg.AWS.Region)
	assert.Equal(t, "us-east-1", cfg.AWS.PricingRegion)
	assert.Equal(t, "weather-key", cfg.OpenWeather.APIKey)
	assert.Equal(t, "imperial", cfg.OpenWeather.Units)
	assert.Equal(t, "ncbi-key", cfg.PubMed.APIKey)
	assert.Equal(t, 5, cfg.Orchestration.MaxHandoffs)
	assert.Equal(t, 20, cfg.Orchestration.MaxIterations)
	assert.Equal(t, 2*time.Minute, cfg.Orchestration.NodeTimeout.Std())
	assert.Equal(t, 15*time.Minute, cfg.Orchestration.ExecutionTimeout.Std())
	assert.Equal(t, 7*24*time.Hour, cfg.Orchestration.HistoryTTL.Std())

	_, err = config.Load("testdata/missing.yaml", "")
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NEXUS_TEST_WEATHER_KEY=from-env-file\n"), 0o600))

	// godotenv does not override existing variables
	require.NoError(t, os.Unsetenv("NEXUS_TEST_WEATHER_KEY"))
	t.Cleanup(func() { _ = os.Unsetenv("NEXUS_TEST_WEATHER_KEY") })

	cfg, err := config.Load("testdata/nexus.yaml", envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env-file", cfg.OpenWeather.APIKey)

	// missing env file is ignored
	_, err = config.Load("testdata/nexus.yaml", filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
}

func TestDefaults(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "")
	cfg := new(config.Config)
	cfg.Defaults()

	assert.Equal(t, config.CacheFile, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL.Std())
	assert.Equal(t, 3, cfg.HTTP.Retries)
	assert.Equal(t, "https://prices.azure.com/api/retail/prices", cfg.Azure.BaseURL)
	assert.Equal(t, 10*time.Minute, cfg.OpenWeather.CacheTTL.Std())
	assert.Equal(t, "metric", cfg.OpenWeather.Units)
	assert.Equal(t, 24*time.Hour, cfg.PubMed.CacheTTL.Std())
	assert.Equal(t, 10, cfg.Orchestration.MaxToolCalls)
	assert.Equal(t, int32(4096), cfg.Bedrock.MaxTokens)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tcases := []struct {
		name string
		mod  func(c *config.Config)
		err  string
	}{
		{
			name: "backend",
			mod:  func(c *config.Config) { c.Cache.Backend = "memcached" },
			err:  "Backend",
		},
		{
			name: "redis_url",
			mod: func(c *config.Config) {
				c.Cache.Backend = config.CacheRedis
				c.Cache.RedisURL = ""
			},
			err: "RedisURL",
		},
		{
			name: "units",
			mod:  func(c *config.Config) { c.OpenWeather.Units = "kelvin" },
			err:  "Units",
		},
		{
			name: "temperature",
			mod:  func(c *config.Config) { c.Bedrock.Temperature = 2 },
			err:  "Temperature",
		},
		{
			name: "email",
			mod:  func(c *config.Config) { c.PubMed.Email = "not-an-email" },
			err:  "Email",
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := new(config.Config)
			cfg.Defaults()
			tc.mod(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestDuration(t *testing.T) {
	var v struct {
		TTL config.Duration `json:"ttl" yaml:"ttl"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"ttl":"90s"}`), &v))
	assert.Equal(t, 90*time.Second, v.TTL.Std())

	require.NoError(t, json.Unmarshal([]byte(`{"ttl":120}`), &v))
	assert.Equal(t, 2*time.Minute, v.TTL.Std())

	require.NoError(t, yaml.Unmarshal([]byte("ttl: 1h30m\n"), &v))
	assert.Equal(t, 90*time.Minute, v.TTL.Std())

	require.NoError(t, yaml.Unmarshal([]byte("ttl: 15\n"), &v))
	assert.Equal(t, 15*time.Second, v.TTL.Std())

	assert.Error(t, json.Unmarshal([]byte(`{"ttl":"soon"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"ttl":true}`), &v))

	js, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"ttl":"15s"}`, string(js))
}
