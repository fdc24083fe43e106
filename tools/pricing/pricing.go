// Package pricing provides tools for the AWS Price List API.
package pricing

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	ptypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/awsclient"
	"github.com/effective-security/nexus/pkg/cache"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
	"github.com/tidwall/gjson"
)

const (
	ToolDescribeServices   = "aws_pricing_describe_services"
	ToolGetAttributeValues = "aws_pricing_get_attribute_values"
	ToolGetProducts        = "aws_pricing_get_products"
)

// DefaultRegion is the region of the Price List API endpoint
const DefaultRegion = "us-east-1"

// DefaultTTL is the cache TTL of the price lists
const DefaultTTL = 24 * time.Hour

// Provider implements the Price List tools
type Provider struct {
	api   API
	cache cache.Cache
	ttl   time.Duration
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
func New(api API, opts ...Option) *Provider {
	p := &Provider{
		api: api,
		ttl: DefaultTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig returns the provider with the SDK client in the pricing region
func NewFromConfig(cfg aws.Config, region string, opts ...Option) *Provider {
	return New(pricing.NewFromConfig(awsclient.ForRegion(cfg, values.StringsCoalesce(region, DefaultRegion))), opts...)
}

// Tools returns the Price List tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolDescribeServices,
		"Lists AWS service codes available in the Price List API with their attribute names.",
		p.DescribeServices, tools.WithCache(p.cache, ToolDescribeServices, p.ttl)))
	b.Add(tools.NewBase(ToolGetAttributeValues,
		"Returns the values of a pricing attribute for an AWS service, like instanceType for AmazonEC2.",
		p.GetAttributeValues, tools.WithCache(p.cache, ToolGetAttributeValues, p.ttl)))
	b.Add(tools.NewBase(ToolGetProducts,
		"Returns AWS products and on-demand prices for a service code filtered by attributes, like instanceType and location.",
		p.GetProducts, tools.WithCache(p.cache, ToolGetProducts, p.ttl)))
	return b.Tools()
}

// DescribeServicesRequest is the input of aws_pricing_describe_services
type DescribeServicesRequest struct {
	ServiceCode string `json:"service_code,omitempty" jsonschema:"title=Service Code,description=Optional service code like AmazonEC2."`
	MaxResults  int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum services to return; defaults to 100." validate:"gte=0,lte=500"`
}

// Service describes a service
type Service struct {
	ServiceCode    string   `json:"service_code"`
	AttributeNames []string `json:"attribute_names,omitempty"`
}

// DescribeServicesResult is the output of aws_pricing_describe_services
type DescribeServicesResult struct {
	Services []Service `json:"services"`
	Count    int       `json:"count"`
}

// DescribeServices follows NextToken until max results
func (p *Provider) DescribeServices(ctx context.Context, req *DescribeServicesRequest) (*DescribeServicesResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, 100)
	input := &pricing.DescribeServicesInput{
		FormatVersion: aws.String("aws_v1"),
	}
	if req.ServiceCode != "" {
		input.ServiceCode = aws.String(req.ServiceCode)
	}

	res := &DescribeServicesResult{Services: []Service{}}
	for {
		out, err := p.api.DescribeServices(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to describe services")
		}
		for _, s := range out.Services {
			if len(res.Services) >= maxResults {
				break
			}
			res.Services = append(res.Services, Service{
				ServiceCode:    aws.ToString(s.ServiceCode),
				AttributeNames: s.AttributeNames,
			})
		}
		if out.NextToken == nil || len(res.Services) >= maxResults {
			break
		}
		input.NextToken = out.NextToken
	}
	res.Count = len(res.Services)
	return res, nil
}

// GetAttributeValuesRequest is the input of aws_pricing_get_attribute_values
type GetAttributeValuesRequest struct {
	ServiceCode   string `json:"service_code" jsonschema:"title=Service Code,description=The service code like AmazonEC2." validate:"required"`
	AttributeName string `json:"attribute_name" jsonschema:"title=Attribute Name,description=The attribute name like instanceType." validate:"required"`
	MaxResults    int    `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum values to return; defaults to 100." validate:"gte=0,lte=1000"`
}

// GetAttributeValuesResult is the output of aws_pricing_get_attribute_values
type GetAttributeValuesResult struct {
	ServiceCode   string   `json:"service_code"`
	AttributeName string   `json:"attribute_name"`
	Values        []string `json:"values"`
	Count         int      `json:"count"`
}

// GetAttributeValues follows NextToken until max results
func (p *Provider) GetAttributeValues(ctx context.Context, req *GetAttributeValuesRequest) (*GetAttributeValuesResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, 100)
	input := &pricing.GetAttributeValuesInput{
		ServiceCode:   aws.String(req.ServiceCode),
		AttributeName: aws.String(req.AttributeName),
	}

	res := &GetAttributeValuesResult{
		ServiceCode:   req.ServiceCode,
		AttributeName: req.AttributeName,
		Values:        []string{},
	}
	for {
		out, err := p.api.GetAttributeValues(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get attribute values")
		}
		for _, v := range out.AttributeValues {
			if len(res.Values) >= maxResults {
				break
			}
			res.Values = append(res.Values, aws.ToString(v.Value))
		}
		if out.NextToken == nil || len(res.Values) >= maxResults {
			break
		}
		input.NextToken = out.NextToken
	}
	res.Count = len(res.Values)
	return res, nil
}

// GetProductsRequest is the input of aws_pricing_get_products
type GetProductsRequest struct {
	ServiceCode string            `json:"service_code" jsonschema:"title=Service Code,description=The service code like AmazonEC2." validate:"required"`
	Filters     map[string]string `json:"filters,omitempty" jsonschema:"title=Filters,description=Attribute name to value exact match filters like instanceType=t3.micro and location=US East (N. Virginia)."`
	MaxResults  int               `json:"max_results,omitempty" jsonschema:"title=Max Results,description=Maximum products to return; defaults to 20." validate:"gte=0,lte=100"`
}

// PriceDimension is the on-demand price of a product
type PriceDimension struct {
	Unit        string  `json:"unit"`
	PriceUSD    float64 `json:"price_usd"`
	Description string  `json:"description,omitempty"`
	BeginRange  string  `json:"begin_range,omitempty"`
	EndRange    string  `json:"end_range,omitempty"`
}

// Product is the reshaped price list entry
type Product struct {
	SKU           string            `json:"sku"`
	ProductFamily string            `json:"product_family,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	OnDemand      []PriceDimension  `json:"on_demand,omitempty"`
}

// GetProductsResult is the output of aws_pricing_get_products
type GetProductsResult struct {
	ServiceCode string    `json:"service_code"`
	Products    []Product `json:"products"`
	Count       int       `json:"count"`
}

// GetProducts returns the products with on-demand prices
func (p *Provider) GetProducts(ctx context.Context, req *GetProductsRequest) (*GetProductsResult, error) {
	maxResults := values.NumbersCoalesce(req.MaxResults, 20)
	input := &pricing.GetProductsInput{
		ServiceCode:   aws.String(req.ServiceCode),
		FormatVersion: aws.String("aws_v1"),
		MaxResults:    aws.Int32(int32(maxResults)),
	}

	keys := make([]string, 0, len(req.Filters))
	for k := range req.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		input.Filters = append(input.Filters, ptypes.Filter{
			Field: aws.String(k),
			Type:  ptypes.FilterTypeTermMatch,
			Value: aws.String(req.Filters[k]),
		})
	}

	res := &GetProductsResult{
		ServiceCode: req.ServiceCode,
		Products:    []Product{},
	}
	for {
		out, err := p.api.GetProducts(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get products")
		}
		for _, doc := range out.PriceList {
			if len(res.Products) >= maxResults {
				break
			}
			prod, err := ParseProduct(doc)
			if err != nil {
				return nil, err
			}
			res.Products = append(res.Products, *prod)
		}
		if out.NextToken == nil || len(res.Products) >= maxResults {
			break
		}
		input.NextToken = out.NextToken
	}
	res.Count = len(res.Products)
	return res, nil
}

// ParseProduct reshapes the price list JSON document
func ParseProduct(doc string) (*Product, error) {
	if !gjson.Valid(doc) {
		return nil, errors.New("invalid price list document")
	}
	r := gjson.Parse(doc)

	prod := &Product{
		SKU:           r.Get("product.sku").String(),
		ProductFamily: r.Get("product.productFamily").String(),
	}
	if attrs := r.Get("product.attributes"); attrs.IsObject() {
		prod.Attributes = make(map[string]string)
		attrs.ForEach(func(k, v gjson.Result) bool {
			prod.Attributes[k.String()] = v.String()
			return true
		})
	}

	r.Get("terms.OnDemand").ForEach(func(_, term gjson.Result) bool {
		term.Get("priceDimensions").ForEach(func(_, pd gjson.Result) bool {
			price, _ := strconv.ParseFloat(pd.Get("pricePerUnit.USD").String(), 64)
			prod.OnDemand = append(prod.OnDemand, PriceDimension{
				Unit:        pd.Get("unit").String(),
				PriceUSD:    price,
				Description: pd.Get("description").String(),
				BeginRange:  pd.Get("beginRange").String(),
				EndRange:    pd.Get("endRange").String(),
			})
			return true
		})
		return true
	})
	sort.SliceStable(prod.OnDemand, func(i, j int) bool {
		return prod.OnDemand[i].PriceUSD < prod.OnDemand[j].PriceUSD
	})
	return prod, nil
}
