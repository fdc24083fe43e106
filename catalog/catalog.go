// Package catalog wires the tools into the registry from the configuration,
// and builds the orchestration Magician over the registry.
package catalog

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/agent"
	"github.com/effective-security/nexus/magician"
	"github.com/effective-security/nexus/pkg/awsclient"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/config"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/effective-security/nexus/store"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/nexus/tools/azureprices"
	"github.com/effective-security/nexus/tools/bedrock"
	"github.com/effective-security/nexus/tools/cloudwatch"
	"github.com/effective-security/nexus/tools/openfda"
	"github.com/effective-security/nexus/tools/pricing"
	"github.com/effective-security/nexus/tools/pubmed"
	"github.com/effective-security/nexus/tools/rds"
	"github.com/effective-security/nexus/tools/report"
	s3tools "github.com/effective-security/nexus/tools/s3"
	"github.com/effective-security/nexus/tools/tavily"
	"github.com/effective-security/nexus/tools/toolgraph"
	"github.com/effective-security/nexus/tools/transcribe"
	"github.com/effective-security/nexus/tools/weather"
	"github.com/effective-security/nexus/tools/websearch"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus", "catalog")

// Provider returns a group of tools
type Provider interface {
	Tools() ([]tools.ITool, error)
}

type closer interface {
	Close(ctx context.Context) error
}

// Option configures the catalog
type Option func(*Catalog)

// WithAWSConfig uses the AWS config instead of loading the default one
func WithAWSConfig(ac aws.Config) Option {
	return func(c *Catalog) {
		c.aws = &ac
	}
}

// WithCache uses the cache instead of the configured backend
func WithCache(ch cache.Cache) Option {
	return func(c *Catalog) {
		c.cache = ch
	}
}

// WithHTTPClient uses the HTTP client for the HTTP API tools
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Catalog) {
		c.http = hc
	}
}

// WithGraphDriver uses the driver for the knowledge graph tools,
// the driver is not closed by the catalog
func WithGraphDriver(d toolgraph.Driver) Option {
	return func(c *Catalog) {
		c.graph = d
	}
}

// WithRunStore records the orchestration runs in the store,
// by default the runs are kept in redis when the cache backend is redis,
// or in memory otherwise
func WithRunStore(s store.RunStore) Option {
	return func(c *Catalog) {
		c.runs = s
	}
}

// WithCallbacks sets the callbacks of the tool calls
func WithCallbacks(list ...tools.Callback) Option {
	return func(c *Catalog) {
		c.callbacks = append(c.callbacks, list...)
	}
}

// WithProviders registers additional tools,
// the providers with Close(ctx) method are closed with the catalog
func WithProviders(list ...Provider) Option {
	return func(c *Catalog) {
		c.extra = append(c.extra, list...)
	}
}

// Catalog is the registry of the configured tools
type Catalog struct {
	cfg       *config.Config
	aws       *aws.Config
	cache     cache.Cache
	http      *httpclient.Client
	graph     toolgraph.Driver
	callbacks []tools.Callback
	extra     []Provider
	runs      store.RunStore

	registry *tools.Registry
	closers  []func(context.Context) error
}

// New returns the catalog with every tool registered.
// The knowledge graph tools are registered when Neo4j is configured.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Catalog, err error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}

	c := &Catalog{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	for _, p := range c.extra {
		if cl, ok := p.(closer); ok {
			c.closers = append(c.closers, cl.Close)
		}
	}
	defer func() {
		if err != nil {
			if cerr := c.Close(ctx); cerr != nil {
				logger.ContextKV(ctx, xlog.ERROR,
					"status", "catalog_close_failed",
					"err", cerr.Error())
			}
		}
	}()

	// the cache and the run store share the redis client
	var client *redis.Client
	if cfg.Cache.Backend == config.CacheRedis && (c.cache == nil || c.runs == nil) {
		if client, err = cache.NewRedisClient(cfg.Cache.RedisURL); err != nil {
			return nil, errors.WithMessage(err, "failed to create cache")
		}
		c.closers = append(c.closers, func(context.Context) error {
			return client.Close()
		})
	}

	if c.cache == nil {
		if client != nil {
			c.cache = cache.NewRedisCache(client, cfg.Cache.Prefix)
		} else {
			ch, err := cache.New(cfg.Cache)
			if err != nil {
				return nil, errors.WithMessage(err, "failed to create cache")
			}
			c.cache = ch
		}
	}
	if c.runs == nil {
		if client != nil {
			c.runs = store.NewRedisStore(client, cfg.Cache.Prefix, cfg.Orchestration.HistoryTTL.Std())
		} else {
			c.runs = store.NewMemoryStore()
		}
	}
	if c.http == nil {
		c.http = httpclient.FromConfig(cfg.HTTP)
	}
	if c.aws == nil {
		ac, err := awsclient.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		c.aws = &ac
	}
	if c.graph == nil && cfg.Neo4j.URI != "" {
		d, err := toolgraph.NewNeo4j(cfg.Neo4j)
		if err != nil {
			return nil, err
		}
		c.graph = d
		c.closers = append(c.closers, d.Close)
	}

	c.registry = tools.NewRegistry(c.callbacks...)
	for _, p := range c.providers() {
		list, err := p.Tools()
		if err != nil {
			return nil, errors.WithMessage(err, "failed to create tools")
		}
		if err = c.registry.Register(list...); err != nil {
			return nil, err
		}
	}

	logger.ContextKV(ctx, xlog.INFO,
		"status", "catalog_created",
		"tools", c.registry.Len(),
		"cache", cfg.Cache.Backend,
		"toolgraph", c.graph != nil)
	return c, nil
}

func (c *Catalog) providers() []Provider {
	cfg := c.cfg
	ac := *c.aws
	s3 := s3tools.NewFromConfig(ac)

	list := []Provider{
		cloudwatch.NewFromConfig(ac),
		pricing.NewFromConfig(ac, cfg.AWS.PricingRegion, pricing.WithCache(c.cache, pricing.DefaultTTL)),
		s3,
		rds.NewFromConfig(ac),
		bedrock.NewFromConfig(ac, bedrock.WithDefaultModel(cfg.Bedrock.ModelID)),
		transcribe.NewFromConfig(ac),
		azureprices.New(c.http,
			azureprices.WithBaseURL(cfg.Azure.BaseURL),
			azureprices.WithAPIVersion(cfg.Azure.APIVersion),
			azureprices.WithMaxPages(cfg.Azure.MaxPages),
			azureprices.WithCache(c.cache, c.ttl(cfg.Azure.CacheTTL))),
		pubmed.New(c.http,
			pubmed.WithBaseURL(cfg.PubMed.BaseURL),
			pubmed.WithCredentials(cfg.PubMed.APIKey, cfg.PubMed.Email, cfg.PubMed.Tool),
			pubmed.WithCache(c.cache, c.ttl(cfg.PubMed.CacheTTL))),
		weather.New(c.http,
			weather.WithBaseURL(cfg.OpenWeather.BaseURL),
			weather.WithAPIKey(cfg.OpenWeather.APIKey),
			weather.WithUnits(cfg.OpenWeather.Units),
			weather.WithCache(c.cache, c.ttl(cfg.OpenWeather.CacheTTL))),
		openfda.New(c.http,
			openfda.WithBaseURL(cfg.OpenFDA.BaseURL),
			openfda.WithAPIKey(cfg.OpenFDA.APIKey),
			openfda.WithCache(c.cache, c.ttl(cfg.OpenFDA.CacheTTL))),
		websearch.New(c.http,
			websearch.WithBaseURL(cfg.DuckDuckGo.BaseURL),
			websearch.WithCache(c.cache, c.ttl(cfg.DuckDuckGo.CacheTTL))),
		tavily.New(cfg.Tavily.APIKey,
			tavily.WithBaseURL(cfg.Tavily.BaseURL),
			tavily.WithHTTPClient(c.http.HTTPClient()),
			tavily.WithCache(c.cache, c.ttl(cfg.Tavily.CacheTTL))),
		report.New(
			report.WithOutputDir(cfg.Reports.OutputDir),
			report.WithMaxBytes(cfg.Reports.MaxBytes),
			report.WithUploader(s3)),
	}
	if c.graph != nil {
		list = append(list, toolgraph.New(c.graph, toolgraph.WithCache(c.cache, toolgraph.DefaultTTL)))
	}
	return append(list, c.extra...)
}

// ttl returns the cache TTL of the section, or the cache default TTL
func (c *Catalog) ttl(section config.Duration) time.Duration {
	if section > 0 {
		return section.Std()
	}
	return c.cfg.Cache.DefaultTTL.Std()
}

// Registry returns the registry of the tools
func (c *Catalog) Registry() *tools.Registry {
	return c.registry
}

// AWSConfig returns the AWS config used by the AWS tools
func (c *Catalog) AWSConfig() aws.Config {
	return *c.aws
}

// Magician returns the orchestration builder creating Bedrock agents
// with the tools of the catalog. Nil runtime uses the Bedrock runtime client
// of the catalog AWS config.
func (c *Catalog) Magician(runtime bedrock.RuntimeAPI) *magician.Magician {
	if runtime == nil {
		runtime = bedrockruntime.NewFromConfig(*c.aws)
	}
	factory := agent.NewFactory(runtime, c.registry, c.cfg.Bedrock,
		agent.WithMaxToolCalls(c.cfg.Orchestration.MaxToolCalls),
		agent.WithFactoryCallbacks(c.callbacks...))
	return magician.New(factory,
		magician.WithDefaults(c.cfg.Orchestration),
		magician.WithStore(c.runs))
}

// Cache returns the cache shared by the tools
func (c *Catalog) Cache() cache.Cache {
	return c.cache
}

// Runs returns the store of the orchestration runs
func (c *Catalog) Runs() store.RunStore {
	return c.runs
}

// Close releases the resources created by the catalog
func (c *Catalog) Close(ctx context.Context) error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
