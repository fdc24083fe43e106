package pricing

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/pricing"
)

//go:generate mockgen -source=api.go -destination=../../mocks/mockpricing/pricing_mock.gen.go -package mockpricing

// API is the subset of Price List client used by the tools
type API interface {
	DescribeServices(ctx context.Context, params *pricing.DescribeServicesInput, optFns ...func(*pricing.Options)) (*pricing.DescribeServicesOutput, error)
	GetAttributeValues(ctx context.Context, params *pricing.GetAttributeValuesInput, optFns ...func(*pricing.Options)) (*pricing.GetAttributeValuesOutput, error)
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}
