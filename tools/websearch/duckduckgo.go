// Package websearch provides the DuckDuckGo Instant Answer search tool.
package websearch

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
)

const ToolDuckDuckGo = "duckduckgo_search"

const (
	DefaultBaseURL = "https://api.duckduckgo.com"
	DefaultTTL     = time.Hour
)

// Provider implements the DuckDuckGo search
type Provider struct {
	client  *httpclient.Client
	baseURL string
	cache   cache.Cache
	ttl     time.Duration
}

// Option configures the Provider
type Option func(*Provider)

// WithBaseURL overrides the API endpoint
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithCache enables the results cache
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Provider) {
		p.cache = c
		p.ttl = ttl
	}
}

// New returns the provider
func New(client *httpclient.Client, opts ...Option) *Provider {
	p := &Provider{
		client:  client,
		baseURL: DefaultBaseURL,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tools returns the search tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolDuckDuckGo,
		"Searches DuckDuckGo Instant Answers for definitions, summaries and related topics. Does not return full web results.",
		p.Search, tools.WithCache(p.cache, ToolDuckDuckGo, p.ttl)))
	return b.Tools()
}

// SearchRequest is the input of duckduckgo_search
type SearchRequest struct {
	Query      string `json:"query" jsonschema:"title=Query,description=The search query." validate:"required"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum related results; defaults to 10." validate:"gte=0,lte=50"`
}

// Result is a related topic or result link
type Result struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Category string `json:"category,omitempty"`
}

// SearchResult is the output of duckduckgo_search
type SearchResult struct {
	Query          string   `json:"query"`
	Heading        string   `json:"heading,omitempty"`
	Abstract       string   `json:"abstract,omitempty"`
	AbstractSource string   `json:"abstract_source,omitempty"`
	AbstractURL    string   `json:"abstract_url,omitempty"`
	Answer         string   `json:"answer,omitempty"`
	Definition     string   `json:"definition,omitempty"`
	Type           string   `json:"type,omitempty"`
	Results        []Result `json:"results"`
	Count          int      `json:"count"`
}

type topic struct {
	FirstURL string  `json:"FirstURL"`
	Text     string  `json:"Text"`
	Name     string  `json:"Name"`
	Topics   []topic `json:"Topics"`
}

type instantAnswer struct {
	Heading        string  `json:"Heading"`
	AbstractText   string  `json:"AbstractText"`
	AbstractSource string  `json:"AbstractSource"`
	AbstractURL    string  `json:"AbstractURL"`
	Answer         any     `json:"Answer"`
	Definition     string  `json:"Definition"`
	Type           string  `json:"Type"`
	Results        []topic `json:"Results"`
	RelatedTopics  []topic `json:"RelatedTopics"`
}

var answerTypes = map[string]string{
	"A": "article",
	"D": "disambiguation",
	"C": "category",
	"N": "name",
	"E": "exclusive",
}

// Search returns the instant answer with related topics flattened into results
func (p *Provider) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	q.Set("no_redirect", "1")

	var ia instantAnswer
	if err := p.client.GetJSON(ctx, p.baseURL+"/", q, nil, &ia); err != nil {
		return nil, errors.Wrap(err, "failed to search DuckDuckGo")
	}

	res := &SearchResult{
		Query:          req.Query,
		Heading:        ia.Heading,
		Abstract:       ia.AbstractText,
		AbstractSource: ia.AbstractSource,
		AbstractURL:    ia.AbstractURL,
		Definition:     ia.Definition,
		Type:           answerTypes[ia.Type],
		Results:        []Result{},
	}
	// Answer is a string, or an object for calculators and other widgets
	if s, ok := ia.Answer.(string); ok {
		res.Answer = s
	}

	limit := values.NumbersCoalesce(req.MaxResults, 10)
	seen := map[string]bool{}
	var add func(list []topic, category string)
	add = func(list []topic, category string) {
		for _, t := range list {
			if len(res.Results) >= limit {
				return
			}
			if len(t.Topics) > 0 {
				add(t.Topics, t.Name)
				continue
			}
			if t.FirstURL == "" || seen[t.FirstURL] {
				continue
			}
			seen[t.FirstURL] = true
			title, snippet := splitText(t.Text)
			res.Results = append(res.Results, Result{
				Title:    title,
				URL:      t.FirstURL,
				Snippet:  snippet,
				Category: category,
			})
		}
	}
	add(ia.Results, "")
	add(ia.RelatedTopics, "")

	res.Count = len(res.Results)
	return res, nil
}

// splitText returns the title and the rest of topic text like "Go - A programming language"
func splitText(text string) (string, string) {
	if title, rest, ok := strings.Cut(text, " - "); ok {
		return strings.TrimSpace(title), strings.TrimSpace(rest)
	}
	return text, text
}
