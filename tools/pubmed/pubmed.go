// Package pubmed provides tools for the NCBI E-utilities PubMed API.
package pubmed

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
	"github.com/tidwall/gjson"
)

const (
	ToolSearch         = "pubmed_search"
	ToolFetchAbstracts = "pubmed_fetch_abstracts"
)

const (
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	DefaultTool    = "nexus-tools"
	DefaultTTL     = 24 * time.Hour

	// NCBI allows 3 requests per second without API key, and 10 with the key
	rateWithoutKey = 3
	rateWithKey    = 10
	attempts       = 3
)

// Provider implements the PubMed tools
type Provider struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	email   string
	tool    string
	cache   cache.Cache
	ttl     time.Duration
}

// Option configures the Provider
type Option func(*Provider)

// WithBaseURL overrides the E-utilities endpoint
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithCredentials sets the NCBI API key and contact email
func WithCredentials(apiKey, email, tool string) Option {
	return func(p *Provider) {
		p.apiKey = apiKey
		p.email = email
		if tool != "" {
			p.tool = tool
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

// New returns the provider.
// The client is copied with NCBI rate limit and retries.
func New(client *httpclient.Client, opts ...Option) *Provider {
	p := &Provider{
		baseURL: DefaultBaseURL,
		tool:    DefaultTool,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}

	rps := rateWithoutKey
	if p.apiKey != "" {
		rps = rateWithKey
	}
	p.client = client.With(
		httpclient.WithRateLimit(float64(rps), 1),
		httpclient.WithRetries(attempts),
	)
	return p
}

// Tools returns the PubMed tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolSearch,
		"Searches PubMed for biomedical articles and returns PMIDs with titles, journals, dates and authors.",
		p.Search, tools.WithCache(p.cache, ToolSearch, p.ttl)))
	b.Add(tools.NewBase(ToolFetchAbstracts,
		"Fetches PubMed article abstracts, authors, journal and DOI by PMIDs.",
		p.FetchAbstracts, tools.WithCache(p.cache, ToolFetchAbstracts, p.ttl)))
	return b.Tools()
}

func (p *Provider) query(db string) url.Values {
	q := url.Values{}
	q.Set("db", db)
	q.Set("tool", p.tool)
	if p.email != "" {
		q.Set("email", p.email)
	}
	if p.apiKey != "" {
		q.Set("api_key", p.apiKey)
	}
	return q
}

// SearchRequest is the input of pubmed_search
type SearchRequest struct {
	Term       string `json:"term" jsonschema:"title=Term,description=PubMed query like asthma[mesh] AND children." validate:"required"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum articles to return; defaults to 20; maximum 100." validate:"gte=0,lte=100"`
	Sort       string `json:"sort,omitempty" jsonschema:"title=Sort,description=relevance or pub_date; defaults to relevance." validate:"omitempty,oneof=relevance pub_date"`
	MinDate    string `json:"min_date,omitempty" jsonschema:"title=Min Date,description=Optional publication date lower bound as YYYY or YYYY/MM or YYYY/MM/DD."`
	MaxDate    string `json:"max_date,omitempty" jsonschema:"title=Max Date,description=Optional publication date upper bound as YYYY or YYYY/MM or YYYY/MM/DD."`
}

var pubDateRE = regexp.MustCompile(`^\d{4}(/\d{2}(/\d{2})?)?$`)

// Validate returns error for invalid dates
func (r *SearchRequest) Validate() error {
	for _, d := range []string{r.MinDate, r.MaxDate} {
		if d != "" && !pubDateRE.MatchString(d) {
			return errors.Newf("invalid date %q: expected YYYY, YYYY/MM or YYYY/MM/DD", d)
		}
	}
	if (r.MinDate == "") != (r.MaxDate == "") {
		return errors.New("min_date and max_date must be specified together")
	}
	return nil
}

// Article is the article summary
type Article struct {
	PMID    string   `json:"pmid"`
	Title   string   `json:"title"`
	Journal string   `json:"journal"`
	PubDate string   `json:"pub_date"`
	Authors []string `json:"authors"`
	DOI     string   `json:"doi,omitempty"`
	URL     string   `json:"url"`
}

// SearchResult is the output of pubmed_search
type SearchResult struct {
	Term     string    `json:"term"`
	Total    int       `json:"total"`
	Articles []Article `json:"articles"`
	Count    int       `json:"count"`
}

// Search runs esearch followed by esummary of the found ids
func (p *Provider) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	q := p.query("pubmed")
	q.Set("term", req.Term)
	q.Set("retmode", "json")
	q.Set("retmax", strconv.Itoa(values.NumbersCoalesce(req.MaxResults, 20)))
	q.Set("sort", values.StringsCoalesce(req.Sort, "relevance"))
	if req.MinDate != "" {
		q.Set("datetype", "pdat")
		q.Set("mindate", req.MinDate)
		q.Set("maxdate", req.MaxDate)
	}

	body, err := p.client.Get(ctx, p.baseURL+"/esearch.fcgi", q, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search PubMed")
	}
	sr := gjson.GetBytes(body, "esearchresult")
	if !sr.Exists() {
		return nil, errors.New("invalid esearch response")
	}
	if msg := sr.Get("ERROR").String(); msg != "" {
		return nil, tools.InvalidInput("PubMed search failed: %s", msg)
	}

	res := &SearchResult{
		Term:     req.Term,
		Total:    int(sr.Get("count").Int()),
		Articles: []Article{},
	}
	var ids []string
	for _, id := range sr.Get("idlist").Array() {
		ids = append(ids, id.String())
	}
	if len(ids) == 0 {
		return res, nil
	}

	res.Articles, err = p.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	res.Count = len(res.Articles)
	return res, nil
}

func (p *Provider) summaries(ctx context.Context, ids []string) ([]Article, error) {
	q := p.query("pubmed")
	q.Set("id", strings.Join(ids, ","))
	q.Set("retmode", "json")

	body, err := p.client.Get(ctx, p.baseURL+"/esummary.fcgi", q, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get PubMed summaries")
	}
	result := gjson.GetBytes(body, "result")
	if !result.Exists() {
		return nil, errors.New("invalid esummary response")
	}

	list := make([]Article, 0, len(ids))
	// uids keep the esearch order
	for _, uid := range result.Get("uids").Array() {
		doc := result.Get(gjson.Escape(uid.String()))
		if !doc.Exists() || doc.Get("error").Exists() {
			continue
		}
		a := Article{
			PMID:    uid.String(),
			Title:   strings.TrimSpace(doc.Get("title").String()),
			Journal: values.StringsCoalesce(doc.Get("fulljournalname").String(), doc.Get("source").String()),
			PubDate: doc.Get("pubdate").String(),
			Authors: []string{},
			URL:     ArticleURL(uid.String()),
		}
		for _, au := range doc.Get("authors").Array() {
			if name := au.Get("name").String(); name != "" {
				a.Authors = append(a.Authors, name)
			}
		}
		for _, aid := range doc.Get("articleids").Array() {
			if aid.Get("idtype").String() == "doi" {
				a.DOI = aid.Get("value").String()
				break
			}
		}
		list = append(list, a)
	}
	return list, nil
}

// ArticleURL returns PubMed web page of the article
func ArticleURL(pmid string) string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
}
