// Package tavily provides web search tool backed by Tavily API.
package tavily

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
)

const ToolName = "WebSearch"

// DefaultTTL is the cache TTL of search results
const DefaultTTL = time.Hour

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query      string `json:"Query" yaml:"Query" jsonschema:"title=Search Query,description=The query to search web." validate:"required"`
	Depth      string `json:"Depth,omitempty" yaml:"Depth,omitempty" jsonschema:"title=Search Depth,description=basic or advanced; defaults to basic." validate:"omitempty,oneof=basic advanced"`
	MaxResults int    `json:"MaxResults,omitempty" yaml:"MaxResults,omitempty" jsonschema:"title=Max Results,description=Maximum results to return; defaults to 5." validate:"gte=0,lte=20"`
}

// SearchResult represents the structure for a search response
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"Results" jsonschema:"title=results,description=The results from a web search."`
	Answer  string                      `json:"answer,omitempty" yaml:"Answer" jsonschema:"title=answer,description=The aggregated answer from a web search."`
}

// Provider implements the Tavily web search
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	ttl        time.Duration
}

// Option configures the Provider
type Option func(*Provider)

// WithBaseURL overrides the Tavily endpoint
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithCache enables the results cache
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Provider) {
		p.cache = c
		p.ttl = ttl
	}
}

// New returns the provider, the API key is required when the tool runs
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey: apiKey,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tools returns the web search tool
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolName,
		"A tool that provides a web search functionality.",
		p.Search, tools.WithCache(p.cache, ToolName, p.ttl)))
	return b.Tools()
}

// Search runs the web search
func (p *Provider) Search(_ context.Context, req *SearchRequest) (*SearchResult, error) {
	if p.apiKey == "" {
		return nil, tools.NotConfigured("TAVILY_API_KEY is not set")
	}

	client := tavilygo.NewClient(p.apiKey)
	if p.baseURL != "" {
		client.BaseURL = p.baseURL
	}
	if p.httpClient != nil {
		client.HTTPClient = p.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:         req.Query,
		SearchDepth:   values.StringsCoalesce(req.Depth, "basic"),
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform search")
	}

	res := &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}
	if limit := values.NumbersCoalesce(req.MaxResults, 5); len(res.Results) > limit {
		res.Results = res.Results[:limit]
	}
	if res.Results == nil {
		res.Results = []tavilyModels.SearchResult{}
	}
	return res, nil
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}
