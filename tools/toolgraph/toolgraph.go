// Package toolgraph queries the knowledge graph of tool metadata.
//
// The graph is expected to hold:
//
//	(:Tool {name, description, category, provider})-[:IN_CATEGORY]->(:Category {name})
//	(:Tool)-[:DEPENDS_ON]->(:Tool)
//	(:Tool)-[:HAS_PARAMETER]->(:Parameter {name, type, required, description})
package toolgraph

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus/tools", "toolgraph")

const (
	ToolSearch         = "toolgraph_search"
	ToolGetTool        = "toolgraph_get_tool"
	ToolRelated        = "toolgraph_related"
	ToolListCategories = "toolgraph_list_categories"
)

const (
	DefaultTTL   = 10 * time.Minute
	defaultLimit = 20
	maxDepth     = 3
)

// Provider implements the graph tools
type Provider struct {
	driver Driver
	cache  cache.Cache
	ttl    time.Duration
}

// Option configures the Provider
type Option func(*Provider)

// WithCache enables the results cache
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Provider) {
		p.cache = c
		p.ttl = ttl
	}
}

// New returns the provider
func New(driver Driver, opts ...Option) *Provider {
	p := &Provider{
		driver: driver,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tools returns the graph tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolSearch,
		"Searches the tool catalog graph by keyword over name and description, optionally filtered by category or provider.",
		p.Search, tools.WithCache(p.cache, ToolSearch, p.ttl)))
	b.Add(tools.NewBase(ToolGetTool,
		"Returns a tool from the catalog graph with its parameters and dependencies.",
		p.GetTool, tools.WithCache(p.cache, ToolGetTool, p.ttl)))
	b.Add(tools.NewBase(ToolRelated,
		"Returns tools related to the given tool by shared category or by dependency paths up to the given depth.",
		p.Related, tools.WithCache(p.cache, ToolRelated, p.ttl)))
	b.Add(tools.NewBase(ToolListCategories,
		"Lists the tool categories in the catalog graph with the number of tools in each.",
		p.ListCategories, tools.WithCache(p.cache, ToolListCategories, p.ttl)))
	return b.Tools()
}

// Tool is a catalog entry
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

func toolOf(r Record) Tool {
	return Tool{
		Name:        r.String("name"),
		Description: r.String("description"),
		Category:    r.String("category"),
		Provider:    r.String("provider"),
	}
}

// SearchRequest is the input of toolgraph_search
type SearchRequest struct {
	Keyword  string `json:"keyword,omitempty" jsonschema:"title=Keyword,description=Case-insensitive text matched against tool names and descriptions."`
	Category string `json:"category,omitempty" jsonschema:"title=Category,description=Exact category name."`
	Provider string `json:"provider,omitempty" jsonschema:"title=Provider,description=Exact provider name like aws or pubmed."`
	Limit    int    `json:"limit,omitempty" jsonschema:"title=Limit,description=Maximum tools to return; defaults to 20." validate:"gte=0,lte=100"`
}

// SearchResult is the output of toolgraph_search
type SearchResult struct {
	Tools []Tool `json:"tools"`
	Count int    `json:"count"`
}

const searchQuery = `MATCH (t:Tool)
OPTIONAL MATCH (t)-[:IN_CATEGORY]->(c:Category)
WITH t, coalesce(c.name, t.category) AS category
WHERE ($keyword = '' OR toLower(t.name) CONTAINS $keyword OR toLower(coalesce(t.description, '')) CONTAINS $keyword)
  AND ($category = '' OR toLower(category) = $category)
  AND ($provider = '' OR toLower(t.provider) = $provider)
RETURN DISTINCT t.name AS name, t.description AS description, category, t.provider AS provider
ORDER BY name
LIMIT $limit`

// Search returns the tools matching the filters
func (p *Provider) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	records, err := p.driver.Execute(ctx, searchQuery, map[string]any{
		"keyword":  normalize(req.Keyword),
		"category": normalize(req.Category),
		"provider": normalize(req.Provider),
		"limit":    int64(values.NumbersCoalesce(req.Limit, defaultLimit)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search tools")
	}

	res := &SearchResult{
		Tools: make([]Tool, 0, len(records)),
	}
	for _, r := range records {
		res.Tools = append(res.Tools, toolOf(r))
	}
	res.Count = len(res.Tools)

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "searched",
		"keyword", req.Keyword,
		"count", res.Count)
	return res, nil
}

// GetToolRequest is the input of toolgraph_get_tool
type GetToolRequest struct {
	Name string `json:"name" jsonschema:"title=Name,description=The tool name; matched case-insensitively." validate:"required"`
}

// Parameter describes a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// ToolDetails is the output of toolgraph_get_tool
type ToolDetails struct {
	Tool
	Parameters []Parameter `json:"parameters"`
	DependsOn  []string    `json:"depends_on"`
	RequiredBy []string    `json:"required_by"`
}

const getToolQuery = `MATCH (t:Tool) WHERE toLower(t.name) = $name
OPTIONAL MATCH (t)-[:IN_CATEGORY]->(c:Category)
OPTIONAL MATCH (t)-[:HAS_PARAMETER]->(p:Parameter)
OPTIONAL MATCH (t)-[:DEPENDS_ON]->(d:Tool)
OPTIONAL MATCH (r:Tool)-[:DEPENDS_ON]->(t)
RETURN t.name AS name, t.description AS description, coalesce(c.name, t.category) AS category, t.provider AS provider,
  collect(DISTINCT p {.name, .type, .required, .description}) AS parameters,
  collect(DISTINCT d.name) AS depends_on,
  collect(DISTINCT r.name) AS required_by`

// GetTool returns the tool details
func (p *Provider) GetTool(ctx context.Context, req *GetToolRequest) (*ToolDetails, error) {
	records, err := p.driver.Execute(ctx, getToolQuery, map[string]any{
		"name": normalize(req.Name),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get tool %s", req.Name)
	}
	if len(records) == 0 || records[0].String("name") == "" {
		return nil, tools.NotFound("tool %q is not in the graph; use %s to find tools", req.Name, ToolSearch)
	}

	r := records[0]
	res := &ToolDetails{
		Tool:       toolOf(r),
		Parameters: []Parameter{},
		DependsOn:  r.Strings("depends_on"),
		RequiredBy: r.Strings("required_by"),
	}
	for _, pr := range r.Records("parameters") {
		res.Parameters = append(res.Parameters, Parameter{
			Name:        pr.String("name"),
			Type:        pr.String("type"),
			Required:    pr.Bool("required"),
			Description: pr.String("description"),
		})
	}
	// required first, then by name
	slices.SortStableFunc(res.Parameters, func(a, b Parameter) int {
		if a.Required != b.Required {
			if a.Required {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	slices.Sort(res.DependsOn)
	slices.Sort(res.RequiredBy)
	return res, nil
}

// RelatedRequest is the input of toolgraph_related
type RelatedRequest struct {
	Name  string `json:"name" jsonschema:"title=Name,description=The tool name." validate:"required"`
	Depth int    `json:"depth,omitempty" jsonschema:"title=Depth,description=Maximum dependency path length from 1 to 3; defaults to 1." validate:"gte=0,lte=3"`
	Limit int    `json:"limit,omitempty" jsonschema:"title=Limit,description=Maximum related tools; defaults to 20." validate:"gte=0,lte=100"`
}

// Relation values
const (
	RelationDependsOn  = "depends_on"
	RelationRequiredBy = "required_by"
	RelationCategory   = "same_category"
)

// RelatedTool is a tool related to the requested one
type RelatedTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Relation    string `json:"relation"`
	Distance    int    `json:"distance"`
}

// RelatedResult is the output of toolgraph_related
type RelatedResult struct {
	Tool     string        `json:"tool"`
	Depth    int           `json:"depth"`
	Related  []RelatedTool `json:"related"`
	Count    int           `json:"count"`
	Category string        `json:"category,omitempty"`
}

const peersQuery = `MATCH (t:Tool) WHERE toLower(t.name) = $name
OPTIONAL MATCH (t)-[:IN_CATEGORY]->(c:Category)<-[:IN_CATEGORY]-(s:Tool) WHERE s <> t
RETURN t.name AS tool, c.name AS category, s.name AS name, s.description AS description
ORDER BY name`

// variable length bounds can not be parameters
const dependencyQuery = `MATCH (t:Tool) WHERE toLower(t.name) = $name
MATCH path = (t)-[:DEPENDS_ON*1..%[1]d]->(d:Tool) WHERE d <> t
RETURN d.name AS name, d.description AS description, 'depends_on' AS relation, min(length(path)) AS distance
UNION ALL
MATCH (t:Tool) WHERE toLower(t.name) = $name
MATCH path = (t)<-[:DEPENDS_ON*1..%[1]d]-(d:Tool) WHERE d <> t
RETURN d.name AS name, d.description AS description, 'required_by' AS relation, min(length(path)) AS distance`

// Related returns the dependency neighbourhood first, ordered by distance,
// followed by the tools sharing a category
func (p *Provider) Related(ctx context.Context, req *RelatedRequest) (*RelatedResult, error) {
	depth := min(values.NumbersCoalesce(req.Depth, 1), maxDepth)
	limit := values.NumbersCoalesce(req.Limit, defaultLimit)
	params := map[string]any{"name": normalize(req.Name)}

	peers, err := p.driver.Execute(ctx, peersQuery, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query category peers of %s", req.Name)
	}
	if len(peers) == 0 {
		return nil, tools.NotFound("tool %q is not in the graph; use %s to find tools", req.Name, ToolSearch)
	}

	deps, err := p.driver.Execute(ctx, fmt.Sprintf(dependencyQuery, depth), params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query dependencies of %s", req.Name)
	}

	res := &RelatedResult{
		Tool:     peers[0].String("tool"),
		Depth:    depth,
		Category: peers[0].String("category"),
		Related:  []RelatedTool{},
	}

	var dependencies []RelatedTool
	for _, r := range deps {
		dependencies = append(dependencies, RelatedTool{
			Name:        r.String("name"),
			Description: r.String("description"),
			Relation:    r.String("relation"),
			Distance:    int(r.Int("distance")),
		})
	}
	slices.SortStableFunc(dependencies, func(a, b RelatedTool) int {
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		return strings.Compare(a.Name, b.Name)
	})

	seen := map[string]bool{}
	add := func(rt RelatedTool) {
		if rt.Name == "" || seen[rt.Name] || len(res.Related) >= limit {
			return
		}
		seen[rt.Name] = true
		res.Related = append(res.Related, rt)
	}
	for _, rt := range dependencies {
		add(rt)
	}
	for _, r := range peers {
		add(RelatedTool{
			Name:        r.String("name"),
			Description: r.String("description"),
			Relation:    RelationCategory,
			Distance:    1,
		})
	}
	res.Count = len(res.Related)
	return res, nil
}

// ListCategoriesRequest is the input of toolgraph_list_categories
type ListCategoriesRequest struct{}

// Category is a category with its tool count
type Category struct {
	Name  string `json:"name"`
	Tools int    `json:"tools"`
}

// ListCategoriesResult is the output of toolgraph_list_categories
type ListCategoriesResult struct {
	Categories []Category `json:"categories"`
	Count      int        `json:"count"`
}

const categoriesQuery = `MATCH (c:Category)
OPTIONAL MATCH (t:Tool)-[:IN_CATEGORY]->(c)
RETURN c.name AS name, count(DISTINCT t) AS tools
ORDER BY name`

// ListCategories returns the categories
func (p *Provider) ListCategories(ctx context.Context, _ *ListCategoriesRequest) (*ListCategoriesResult, error) {
	records, err := p.driver.Execute(ctx, categoriesQuery, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}

	res := &ListCategoriesResult{
		Categories: make([]Category, 0, len(records)),
	}
	for _, r := range records {
		res.Categories = append(res.Categories, Category{
			Name:  r.String("name"),
			Tools: int(r.Int("tools")),
		})
	}
	res.Count = len(res.Categories)
	return res, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
