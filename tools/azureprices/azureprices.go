// Package azureprices provides tools for the Azure Retail Prices API.
package azureprices

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/pkg/httpclient"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus/tools", "azureprices")

const (
	ToolRetailPrices   = "azure_retail_prices"
	ToolCompareRegions = "azure_compare_region_prices"
)

const (
	DefaultBaseURL    = "https://prices.azure.com/api/retail/prices"
	DefaultAPIVersion = "2023-01-01-preview"
	DefaultMaxPages   = 10
	DefaultTTL        = 24 * time.Hour
	defaultMaxItems   = 100
)

// Provider implements the Azure Retail Prices tools
type Provider struct {
	client     *httpclient.Client
	baseURL    string
	apiVersion string
	maxPages   int
	cache      cache.Cache
	ttl        time.Duration
}

// Option configures the Provider
type Option func(*Provider)

// WithBaseURL overrides the API endpoint
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = u
		}
	}
}

// WithAPIVersion overrides the API version
func WithAPIVersion(v string) Option {
	return func(p *Provider) {
		if v != "" {
			p.apiVersion = v
		}
	}
}

// WithMaxPages limits the followed NextPageLink pages
func WithMaxPages(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxPages = n
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
		client:     client,
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
		maxPages:   DefaultMaxPages,
		ttl:        DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tools returns the Azure Retail Prices tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolRetailPrices,
		"Returns Azure retail prices filtered by service, region, SKU and price type.",
		p.RetailPrices, tools.WithCache(p.cache, ToolRetailPrices, p.ttl)))
	b.Add(tools.NewBase(ToolCompareRegions,
		"Compares Azure retail price of a service SKU across regions, cheapest first.",
		p.CompareRegions, tools.WithCache(p.cache, ToolCompareRegions, p.ttl)))
	return b.Tools()
}

// RetailPricesRequest is the input of azure_retail_prices
type RetailPricesRequest struct {
	ServiceName string `json:"service_name,omitempty" jsonschema:"title=Service Name,description=Service name like Virtual Machines or Storage."`
	Region      string `json:"region,omitempty" jsonschema:"title=Region,description=ARM region name like eastus or westeurope."`
	SKUName     string `json:"sku_name,omitempty" jsonschema:"title=SKU Name,description=SKU name like D2s v3."`
	ARMSKUName  string `json:"arm_sku_name,omitempty" jsonschema:"title=ARM SKU Name,description=ARM SKU name like Standard_D2s_v3."`
	ProductName string `json:"product_name,omitempty" jsonschema:"title=Product Name,description=Product name like Virtual Machines Dsv3 Series."`
	PriceType   string `json:"price_type,omitempty" jsonschema:"title=Price Type,description=Consumption or Reservation or DevTestConsumption." validate:"omitempty,oneof=Consumption Reservation DevTestConsumption"`
	Currency    string `json:"currency,omitempty" jsonschema:"title=Currency,description=Currency code; defaults to USD." validate:"omitempty,len=3"`
	Filter      string `json:"filter,omitempty" jsonschema:"title=Filter,description=Additional OData filter expression joined with and."`
	MaxItems    int    `json:"max_items,omitempty" jsonschema:"title=Max Items,description=Maximum price items to return; defaults to 100." validate:"gte=0,lte=1000"`
}

// Validate returns error when no filter is specified
func (r *RetailPricesRequest) Validate() error {
	if r.ServiceName == "" && r.Region == "" && r.SKUName == "" && r.ARMSKUName == "" && r.ProductName == "" && r.Filter == "" {
		return errors.New("at least one filter must be specified: service_name, region, sku_name, arm_sku_name, product_name or filter")
	}
	return nil
}

// Price is the retail price item
type Price struct {
	ServiceName     string  `json:"serviceName"`
	ServiceFamily   string  `json:"serviceFamily,omitempty"`
	ProductName     string  `json:"productName"`
	SKUName         string  `json:"skuName"`
	ARMSKUName      string  `json:"armSkuName,omitempty"`
	MeterName       string  `json:"meterName"`
	Region          string  `json:"armRegionName"`
	Location        string  `json:"location,omitempty"`
	RetailPrice     float64 `json:"retailPrice"`
	UnitPrice       float64 `json:"unitPrice"`
	UnitOfMeasure   string  `json:"unitOfMeasure"`
	CurrencyCode    string  `json:"currencyCode"`
	Type            string  `json:"type"`
	ReservationTerm string  `json:"reservationTerm,omitempty"`
	EffectiveStart  string  `json:"effectiveStartDate,omitempty"`
}

type pricesPage struct {
	BillingCurrency string  `json:"BillingCurrency"`
	Items           []Price `json:"Items"`
	NextPageLink    string  `json:"NextPageLink"`
	Count           int     `json:"Count"`
}

// RetailPricesResult is the output of azure_retail_prices
type RetailPricesResult struct {
	Filter    string  `json:"filter"`
	Currency  string  `json:"currency"`
	Items     []Price `json:"items"`
	Count     int     `json:"count"`
	Truncated bool    `json:"truncated"`
}

// Quote returns the OData string literal with single quotes escaped
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ODataFilter returns the OData $filter expression of the request
func (r *RetailPricesRequest) ODataFilter() string {
	var parts []string
	add := func(field, val string) {
		if val != "" {
			parts = append(parts, field+" eq "+Quote(val))
		}
	}
	add("serviceName", r.ServiceName)
	add("armRegionName", r.Region)
	add("skuName", r.SKUName)
	add("armSkuName", r.ARMSKUName)
	add("productName", r.ProductName)
	add("priceType", r.PriceType)
	if f := strings.TrimSpace(r.Filter); f != "" {
		parts = append(parts, f)
	}
	return strings.Join(parts, " and ")
}

// RetailPrices returns the prices, following NextPageLink
func (p *Provider) RetailPrices(ctx context.Context, req *RetailPricesRequest) (*RetailPricesResult, error) {
	maxItems := values.NumbersCoalesce(req.MaxItems, defaultMaxItems)
	currency := strings.ToUpper(values.StringsCoalesce(req.Currency, "USD"))
	filter := req.ODataFilter()

	query := url.Values{}
	query.Set("api-version", p.apiVersion)
	query.Set("$filter", filter)
	if currency != "USD" {
		query.Set("currencyCode", Quote(currency))
	}

	res := &RetailPricesResult{
		Filter:   filter,
		Currency: currency,
		Items:    []Price{},
	}

	next := p.baseURL
	for page := 0; next != ""; page++ {
		if page >= p.maxPages {
			res.Truncated = true
			logger.ContextKV(ctx, xlog.DEBUG, "status", "max_pages_reached", "pages", page, "filter", filter)
			break
		}

		var body pricesPage
		// NextPageLink carries the complete query
		if err := p.client.GetJSON(ctx, next, query, nil, &body); err != nil {
			return nil, errors.Wrap(err, "failed to get Azure retail prices")
		}
		query = nil

		for _, item := range body.Items {
			if len(res.Items) >= maxItems {
				res.Truncated = true
				break
			}
			res.Items = append(res.Items, item)
		}
		if res.Truncated {
			break
		}
		next = body.NextPageLink
	}

	res.Count = len(res.Items)
	return res, nil
}

// CompareRegionsRequest is the input of azure_compare_region_prices
type CompareRegionsRequest struct {
	ServiceName string   `json:"service_name" jsonschema:"title=Service Name,description=Service name like Virtual Machines." validate:"required"`
	SKUName     string   `json:"sku_name,omitempty" jsonschema:"title=SKU Name,description=SKU name like D2s v3."`
	ARMSKUName  string   `json:"arm_sku_name,omitempty" jsonschema:"title=ARM SKU Name,description=ARM SKU name like Standard_D2s_v3."`
	Regions     []string `json:"regions" jsonschema:"title=Regions,description=ARM region names to compare." validate:"required,min=1,max=30,dive,required"`
	Currency    string   `json:"currency,omitempty" jsonschema:"title=Currency,description=Currency code; defaults to USD." validate:"omitempty,len=3"`
}

// Validate returns error when SKU is not specified
func (r *CompareRegionsRequest) Validate() error {
	if r.SKUName == "" && r.ARMSKUName == "" {
		return errors.New("sku_name or arm_sku_name must be specified")
	}
	return nil
}

// RegionPrice is the cheapest consumption price in the region
type RegionPrice struct {
	Region        string  `json:"region"`
	Location      string  `json:"location,omitempty"`
	RetailPrice   float64 `json:"retail_price"`
	UnitOfMeasure string  `json:"unit_of_measure"`
	MeterName     string  `json:"meter_name"`
	ProductName   string  `json:"product_name"`
}

// CompareRegionsResult is the output of azure_compare_region_prices
type CompareRegionsResult struct {
	Currency string        `json:"currency"`
	Prices   []RegionPrice `json:"prices"`
	Missing  []string      `json:"missing,omitempty"`
	Cheapest string        `json:"cheapest,omitempty"`
}

// CompareRegions returns the cheapest consumption price per region, ordered by price
func (p *Provider) CompareRegions(ctx context.Context, req *CompareRegionsRequest) (*CompareRegionsResult, error) {
	res := &CompareRegionsResult{
		Currency: strings.ToUpper(values.StringsCoalesce(req.Currency, "USD")),
		Prices:   []RegionPrice{},
	}
	for _, region := range req.Regions {
		list, err := p.RetailPrices(ctx, &RetailPricesRequest{
			ServiceName: req.ServiceName,
			Region:      region,
			SKUName:     req.SKUName,
			ARMSKUName:  req.ARMSKUName,
			PriceType:   "Consumption",
			Currency:    req.Currency,
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "region %s", region)
		}

		var best *Price
		for i := range list.Items {
			item := &list.Items[i]
			// skip spot and low priority meters
			if item.RetailPrice <= 0 || isDiscountedMeter(item) {
				continue
			}
			if best == nil || item.RetailPrice < best.RetailPrice {
				best = item
			}
		}
		if best == nil {
			res.Missing = append(res.Missing, region)
			continue
		}
		res.Prices = append(res.Prices, RegionPrice{
			Region:        region,
			Location:      best.Location,
			RetailPrice:   best.RetailPrice,
			UnitOfMeasure: best.UnitOfMeasure,
			MeterName:     best.MeterName,
			ProductName:   best.ProductName,
		})
	}

	sort.SliceStable(res.Prices, func(i, j int) bool {
		return res.Prices[i].RetailPrice < res.Prices[j].RetailPrice
	})
	if len(res.Prices) > 0 {
		res.Cheapest = res.Prices[0].Region
	}
	return res, nil
}

func isDiscountedMeter(p *Price) bool {
	m := strings.ToLower(p.MeterName + " " + p.SKUName)
	return strings.Contains(m, "spot") || strings.Contains(m, "low priority")
}
