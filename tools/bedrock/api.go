package bedrock

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

//go:generate mockgen -source=api.go -destination=../../mocks/mockbedrock/bedrock_mock.gen.go -package mockbedrock

// API is the subset of Bedrock control plane client used by the tools
type API interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

// RuntimeAPI is the subset of Bedrock runtime client used by the tools and agents
type RuntimeAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}
