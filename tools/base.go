package tools

import (
	"context"
	"time"

	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/metricskey"
	"github.com/effective-security/nexus/pkg/schema"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus", "tools")

// RunFunc executes the tool
type RunFunc[I any, O any] func(ctx context.Context, in *I) (*O, error)

// Base is the generic tool: it parses and validates the input,
// looks up the cache, runs the function and returns the envelope.
type Base[I any, O any] struct {
	name        string
	description string
	params      *schema.Schema
	run         RunFunc[I, O]

	cache     cache.Cache
	namespace string
	ttl       time.Duration
}

// ensure Base implements the Tool interface
var _ Tool[struct{}, struct{}] = (*Base[struct{}, struct{}])(nil)

// Option configures the Base tool
type Option func(*baseOptions)

type baseOptions struct {
	cache     cache.Cache
	namespace string
	ttl       time.Duration
}

// WithCache enables results cache with the namespace and TTL.
// The cache is not used if c is nil or ttl is 0.
func WithCache(c cache.Cache, namespace string, ttl time.Duration) Option {
	return func(o *baseOptions) {
		o.cache = c
		o.namespace = namespace
		o.ttl = ttl
	}
}

// NewBase returns the tool, the input I must be a struct
func NewBase[I any, O any](name, description string, run func(ctx context.Context, in *I) (*O, error), opts ...Option) (*Base[I, O], error) {
	sc, err := schema.For[I]()
	if err != nil {
		return nil, err
	}

	var o baseOptions
	for _, opt := range opts {
		opt(&o)
	}

	t := &Base[I, O]{
		name:        name,
		description: description,
		params:      sc,
		run:         run,
	}
	if o.cache != nil && o.ttl != 0 {
		t.cache = o.cache
		t.namespace = o.namespace
		if t.namespace == "" {
			t.namespace = name
		}
		t.ttl = o.ttl
	}
	return t, nil
}

func (t *Base[I, O]) Name() string {
	return t.name
}

func (t *Base[I, O]) Description() string {
	return t.description
}

func (t *Base[I, O]) Parameters() any {
	return t.params.Parameters
}

// Schema returns the input schema
func (t *Base[I, O]) Schema() *schema.Schema {
	return t.params
}

// Run validates the input and executes the tool, the cache is not used
func (t *Base[I, O]) Run(ctx context.Context, in *I) (*O, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	return t.run(ctx, in)
}

func (t *Base[I, O]) Call(ctx context.Context, input string) (string, error) {
	var in I
	if err := ParseInput(input, &in); err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, t.name, string(ErrorTypeValidation))
		return "", err
	}

	started := time.Now()
	defer metricskey.PerfToolCall.MeasureSince(started, t.name)

	out, cached, err := t.execute(ctx, &in)
	if err != nil {
		info := Classify(err)
		metricskey.StatsToolCallsFailed.IncrCounter(1, t.name, string(info.Type))
		logger.ContextKV(ctx, xlog.DEBUG,
			"tool", t.name,
			"status", "failed",
			"error_type", info.Type,
			"err", err.Error(),
		)
		return Failure(t.name, err), nil
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, t.name)
	return Success(t.name, out, cached), nil
}

func (t *Base[I, O]) execute(ctx context.Context, in *I) (*O, bool, error) {
	if err := ValidateInput(in); err != nil {
		return nil, false, err
	}

	if t.cache == nil {
		out, err := t.run(ctx, in)
		return out, false, err
	}

	key := cache.Key(t.namespace, in)
	out := new(O)
	found, err := t.cache.Get(ctx, key, out)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "tool", t.name, "status", "cache_get_failed", "err", err.Error())
	}
	if found {
		metricskey.StatsCacheHits.IncrCounter(1, t.namespace)
		logger.ContextKV(ctx, xlog.DEBUG, "tool", t.name, "status", "cache_hit", "key", key)
		return out, true, nil
	}
	metricskey.StatsCacheMisses.IncrCounter(1, t.namespace)

	out, err = t.run(ctx, in)
	if err != nil {
		return nil, false, err
	}
	if err = t.cache.Set(ctx, key, out, t.ttl); err != nil {
		logger.ContextKV(ctx, xlog.WARNING, "tool", t.name, "status", "cache_set_failed", "err", err.Error())
	}
	return out, false, nil
}
