// Package config provides the configuration model of the tool catalog,
// including API endpoints, credentials, cache and retry settings.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Cache backends
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config is the root configuration
type Config struct {
	Cache         Cache         `json:"cache" yaml:"cache"`
	HTTP          HTTP          `json:"http" yaml:"http"`
	AWS           AWS           `json:"aws" yaml:"aws"`
	Azure         Azure         `json:"azure" yaml:"azure"`
	PubMed        PubMed        `json:"pubmed" yaml:"pubmed"`
	OpenWeather   OpenWeather   `json:"openweather" yaml:"openweather"`
	OpenFDA       OpenFDA       `json:"openfda" yaml:"openfda"`
	DuckDuckGo    DuckDuckGo    `json:"duckduckgo" yaml:"duckduckgo"`
	Tavily        Tavily        `json:"tavily" yaml:"tavily"`
	Neo4j         Neo4j         `json:"neo4j" yaml:"neo4j"`
	Reports       Reports       `json:"reports" yaml:"reports"`
	Bedrock       Bedrock       `json:"bedrock" yaml:"bedrock"`
	Orchestration Orchestration `json:"orchestration" yaml:"orchestration"`
}

// Cache specifies the tool results cache
type Cache struct {
	// Backend is one of file|redis|none
	Backend string `json:"backend" yaml:"backend" validate:"omitempty,oneof=file redis none"`
	// Dir is the folder for the file backend
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// RedisURL is the connection string for the redis backend
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" validate:"required_if=Backend redis"`
	// Prefix is the key prefix for the redis backend
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// DefaultTTL is used by the tool sections with zero cache_ttl
	DefaultTTL Duration `json:"default_ttl,omitempty" yaml:"default_ttl,omitempty"`
}

// HTTP specifies the outbound HTTP client settings
type HTTP struct {
	Timeout    Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Retries    int      `json:"retries,omitempty" yaml:"retries,omitempty" validate:"gte=0,lte=10"`
	RetryDelay Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
	UserAgent  string   `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// AWS specifies the AWS SDK settings
type AWS struct {
	Region  string `json:"region,omitempty" yaml:"region,omitempty"`
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
	// Endpoint overrides the base endpoint of every service, used with localstack
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"omitempty,url"`
	// PricingRegion is the region of the Price List API endpoint
	PricingRegion string `json:"pricing_region,omitempty" yaml:"pricing_region,omitempty"`
}

// Azure specifies the Azure Retail Prices API
type Azure struct {
	BaseURL    string   `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIVersion string   `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	MaxPages   int      `json:"max_pages,omitempty" yaml:"max_pages,omitempty" validate:"gte=0"`
	CacheTTL   Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}

// PubMed specifies the NCBI E-utilities API
type PubMed struct {
	BaseURL  string   `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey   string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Email    string   `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	Tool     string   `json:"tool,omitempty" yaml:"tool,omitempty"`
	CacheTTL Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}

// OpenWeather specifies the OpenWeatherMap API
type OpenWeather struct {
	BaseURL  string   `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey   string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Units    string   `json:"units,omitempty" yaml:"units,omitempty" validate:"omitempty,oneof=metric imperial standard"`
	CacheTTL Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}

// OpenFDA specifies the openFDA API
type OpenFDA struct {
	BaseURL  string   `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey   string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	CacheTTL Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}

// DuckDuckGo specifies the Instant Answer API
type DuckDuckGo struct {
	BaseURL  string   `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	CacheTTL Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}

// Tavily specifies the Tavily search API
type Tavily struct {
	BaseURL  string   `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey   string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	CacheTTL Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
}

// Neo4j specifies the tool-metadata knowledge graph
type Neo4j struct {
	URI      string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}

// Reports specifies the report and file output
type Reports struct {
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	// MaxBytes limits the size of a single written file
	MaxBytes int64 `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty" validate:"gte=0"`
}

// Bedrock specifies the defaults for Bedrock backed agents and tools
type Bedrock struct {
	ModelID     string  `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	MaxTokens   int32   `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
	Temperature float32 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"gte=0,lte=1"`
}

// Orchestration specifies the default limits of graph and swarm runs
type Orchestration struct {
	MaxHandoffs      int      `json:"max_handoffs,omitempty" yaml:"max_handoffs,omitempty" validate:"gte=0"`
	MaxIterations    int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" validate:"gte=0"`
	ExecutionTimeout Duration `json:"execution_timeout,omitempty" yaml:"execution_timeout,omitempty"`
	NodeTimeout      Duration `json:"node_timeout,omitempty" yaml:"node_timeout,omitempty"`
	MaxToolCalls     int      `json:"max_tool_calls,omitempty" yaml:"max_tool_calls,omitempty" validate:"gte=0"`
	// HistoryTTL is the retention of the runs in the redis run store
	HistoryTTL Duration `json:"history_ttl,omitempty" yaml:"history_ttl,omitempty"`
}

// Load returns the configuration from file, with defaults applied.
// If envFile exists, it is loaded into the process environment before
// the configuration is expanded.
func Load(file, envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err = godotenv.Load(envFile); err != nil {
				return nil, errors.Wrapf(err, "failed to load env file %s", envFile)
			}
		}
	}

	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to load config %s", file)
		}
	}

	cfg.ApplyEnv()
	cfg.Defaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv sets credentials and endpoints from environment variables,
// when they are not specified in the config file.
func (c *Config) ApplyEnv() {
	c.AWS.Region = values.StringsCoalesce(c.AWS.Region, os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION"))
	c.AWS.Profile = values.StringsCoalesce(c.AWS.Profile, os.Getenv("AWS_PROFILE"))
	c.PubMed.APIKey = values.StringsCoalesce(c.PubMed.APIKey, os.Getenv("NCBI_API_KEY"))
	c.PubMed.Email = values.StringsCoalesce(c.PubMed.Email, os.Getenv("NCBI_EMAIL"))
	c.OpenWeather.APIKey = values.StringsCoalesce(c.OpenWeather.APIKey, os.Getenv("OPENWEATHER_API_KEY"))
	c.OpenFDA.APIKey = values.StringsCoalesce(c.OpenFDA.APIKey, os.Getenv("OPENFDA_API_KEY"))
	c.Tavily.APIKey = values.StringsCoalesce(c.Tavily.APIKey, os.Getenv("TAVILY_API_KEY"))
	c.Neo4j.URI = values.StringsCoalesce(c.Neo4j.URI, os.Getenv("NEO4J_URI"))
	c.Neo4j.Username = values.StringsCoalesce(c.Neo4j.Username, os.Getenv("NEO4J_USER"))
	c.Neo4j.Password = values.StringsCoalesce(c.Neo4j.Password, os.Getenv("NEO4J_PASSWORD"))
	c.Neo4j.Database = values.StringsCoalesce(c.Neo4j.Database, os.Getenv("NEO4J_DATABASE"))
	c.Cache.RedisURL = values.StringsCoalesce(c.Cache.RedisURL, os.Getenv("REDIS_URL"))
}

// Defaults fills the values not specified in the config
func (c *Config) Defaults() {
	c.Cache.Backend = values.StringsCoalesce(c.Cache.Backend, CacheFile)
	c.Cache.Dir = values.StringsCoalesce(c.Cache.Dir, ".cache/nexus")
	c.Cache.Prefix = values.StringsCoalesce(c.Cache.Prefix, "nexus")
	c.Cache.DefaultTTL = durationCoalesce(c.Cache.DefaultTTL, time.Hour)

	c.HTTP.Timeout = durationCoalesce(c.HTTP.Timeout, 30*time.Second)
	c.HTTP.Retries = values.NumbersCoalesce(c.HTTP.Retries, 3)
	c.HTTP.RetryDelay = durationCoalesce(c.HTTP.RetryDelay, time.Second)
	c.HTTP.UserAgent = values.StringsCoalesce(c.HTTP.UserAgent, "nexus-tools/1.0")

	c.AWS.Region = values.StringsCoalesce(c.AWS.Region, "us-east-1")
	c.AWS.PricingRegion = values.StringsCoalesce(c.AWS.PricingRegion, "us-east-1")

	c.Azure.BaseURL = values.StringsCoalesce(c.Azure.BaseURL, "https://prices.azure.com/api/retail/prices")
	c.Azure.APIVersion = values.StringsCoalesce(c.Azure.APIVersion, "2023-01-01-preview")
	c.Azure.MaxPages = values.NumbersCoalesce(c.Azure.MaxPages, 10)
	c.Azure.CacheTTL = durationCoalesce(c.Azure.CacheTTL, 24*time.Hour)

	c.PubMed.BaseURL = values.StringsCoalesce(c.PubMed.BaseURL, "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	c.PubMed.Tool = values.StringsCoalesce(c.PubMed.Tool, "nexus-tools")
	c.PubMed.CacheTTL = durationCoalesce(c.PubMed.CacheTTL, 24*time.Hour)

	c.OpenWeather.BaseURL = values.StringsCoalesce(c.OpenWeather.BaseURL, "https://api.openweathermap.org")
	c.OpenWeather.Units = values.StringsCoalesce(c.OpenWeather.Units, "metric")
	c.OpenWeather.CacheTTL = durationCoalesce(c.OpenWeather.CacheTTL, 10*time.Minute)

	c.OpenFDA.BaseURL = values.StringsCoalesce(c.OpenFDA.BaseURL, "https://api.fda.gov")
	c.OpenFDA.CacheTTL = durationCoalesce(c.OpenFDA.CacheTTL, 24*time.Hour)

	c.DuckDuckGo.BaseURL = values.StringsCoalesce(c.DuckDuckGo.BaseURL, "https://api.duckduckgo.com")
	c.DuckDuckGo.CacheTTL = durationCoalesce(c.DuckDuckGo.CacheTTL, time.Hour)

	c.Tavily.CacheTTL = durationCoalesce(c.Tavily.CacheTTL, time.Hour)

	c.Neo4j.Database = values.StringsCoalesce(c.Neo4j.Database, "neo4j")

	c.Reports.OutputDir = values.StringsCoalesce(c.Reports.OutputDir, "reports")
	c.Reports.MaxBytes = values.NumbersCoalesce(c.Reports.MaxBytes, int64(10<<20))

	c.Bedrock.ModelID = values.StringsCoalesce(c.Bedrock.ModelID, "anthropic.claude-3-5-sonnet-20240620-v1:0")
	c.Bedrock.MaxTokens = values.NumbersCoalesce(c.Bedrock.MaxTokens, int32(4096))

	c.Orchestration.MaxHandoffs = values.NumbersCoalesce(c.Orchestration.MaxHandoffs, 20)
	c.Orchestration.MaxIterations = values.NumbersCoalesce(c.Orchestration.MaxIterations, 20)
	c.Orchestration.ExecutionTimeout = durationCoalesce(c.Orchestration.ExecutionTimeout, 15*time.Minute)
	c.Orchestration.NodeTimeout = durationCoalesce(c.Orchestration.NodeTimeout, 5*time.Minute)
	c.Orchestration.MaxToolCalls = values.NumbersCoalesce(c.Orchestration.MaxToolCalls, 10)
	c.Orchestration.HistoryTTL = durationCoalesce(c.Orchestration.HistoryTTL, 7*24*time.Hour)
}

// Validate returns error if the config is not valid
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func durationCoalesce(d Duration, def time.Duration) Duration {
	if d == 0 {
		return Duration(def)
	}
	return d
}
