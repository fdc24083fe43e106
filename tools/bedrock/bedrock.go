// Package bedrock provides tools for Amazon Bedrock foundation models.
package bedrock

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	btypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	rtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/x/values"
)

const (
	ToolListModels  = "bedrock_list_models"
	ToolInvokeModel = "bedrock_invoke_model"
)

// DefaultMaxTokens is used when the request does not specify max tokens
const DefaultMaxTokens = 1024

// Provider implements the Bedrock tools
type Provider struct {
	api          API
	runtime      RuntimeAPI
	defaultModel string
}

// Option configures the Provider
type Option func(*Provider)

// WithDefaultModel sets the model used when the request has no model id
func WithDefaultModel(modelID string) Option {
	return func(p *Provider) {
		p.defaultModel = modelID
	}
}

// New returns the provider
func New(api API, runtime RuntimeAPI, opts ...Option) *Provider {
	p := &Provider{
		api:     api,
		runtime: runtime,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig returns the provider with the SDK clients
func NewFromConfig(cfg aws.Config, opts ...Option) *Provider {
	return New(bedrock.NewFromConfig(cfg), bedrockruntime.NewFromConfig(cfg), opts...)
}

// Tools returns the Bedrock tools
func (p *Provider) Tools() ([]tools.ITool, error) {
	var b tools.Builder
	b.Add(tools.NewBase(ToolListModels,
		"Lists Bedrock foundation models, optionally filtered by provider, output modality and inference type.",
		p.ListModels))
	b.Add(tools.NewBase(ToolInvokeModel,
		"Sends a prompt to Bedrock model and returns the text response with token usage.",
		p.InvokeModel))
	return b.Tools()
}

// ListModelsRequest is the input of bedrock_list_models
type ListModelsRequest struct {
	Provider       string `json:"provider,omitempty" jsonschema:"title=Provider,description=Optional model provider like Anthropic or Amazon or Meta."`
	OutputModality string `json:"output_modality,omitempty" jsonschema:"title=Output Modality,description=Optional output modality: TEXT or IMAGE or EMBEDDING." validate:"omitempty,oneof=TEXT IMAGE EMBEDDING"`
	InferenceType  string `json:"inference_type,omitempty" jsonschema:"title=Inference Type,description=Optional inference type: ON_DEMAND or PROVISIONED." validate:"omitempty,oneof=ON_DEMAND PROVISIONED"`
}

// Model is the summary of foundation model
type Model struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Provider         string   `json:"provider"`
	InputModalities  []string `json:"input_modalities"`
	OutputModalities []string `json:"output_modalities"`
	InferenceTypes   []string `json:"inference_types"`
	Streaming        bool     `json:"streaming"`
	Status           string   `json:"status,omitempty"`
}

// ListModelsResult is the output of bedrock_list_models
type ListModelsResult struct {
	Models []Model `json:"models"`
	Count  int     `json:"count"`
}

// ListModels returns the foundation models sorted by provider and id
func (p *Provider) ListModels(ctx context.Context, req *ListModelsRequest) (*ListModelsResult, error) {
	input := &bedrock.ListFoundationModelsInput{}
	if req.Provider != "" {
		input.ByProvider = aws.String(req.Provider)
	}
	if req.OutputModality != "" {
		input.ByOutputModality = btypes.ModelModality(req.OutputModality)
	}
	if req.InferenceType != "" {
		input.ByInferenceType = btypes.InferenceType(req.InferenceType)
	}

	out, err := p.api.ListFoundationModels(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list foundation models")
	}

	res := &ListModelsResult{Models: make([]Model, 0, len(out.ModelSummaries))}
	for _, m := range out.ModelSummaries {
		model := Model{
			ID:               aws.ToString(m.ModelId),
			Name:             aws.ToString(m.ModelName),
			Provider:         aws.ToString(m.ProviderName),
			InputModalities:  enumStrings(m.InputModalities),
			OutputModalities: enumStrings(m.OutputModalities),
			InferenceTypes:   enumStrings(m.InferenceTypesSupported),
			Streaming:        aws.ToBool(m.ResponseStreamingSupported),
		}
		if m.ModelLifecycle != nil {
			model.Status = string(m.ModelLifecycle.Status)
		}
		res.Models = append(res.Models, model)
	}
	sort.Slice(res.Models, func(i, j int) bool {
		if res.Models[i].Provider != res.Models[j].Provider {
			return res.Models[i].Provider < res.Models[j].Provider
		}
		return res.Models[i].ID < res.Models[j].ID
	})
	res.Count = len(res.Models)
	return res, nil
}

func enumStrings[T ~string](list []T) []string {
	res := make([]string, len(list))
	for i, v := range list {
		res[i] = string(v)
	}
	return res
}

// InvokeModelRequest is the input of bedrock_invoke_model
type InvokeModelRequest struct {
	ModelID     string   `json:"model_id,omitempty" jsonschema:"title=Model ID,description=Model or inference profile id; defaults to the configured model."`
	Prompt      string   `json:"prompt" jsonschema:"title=Prompt,description=The user prompt." validate:"required"`
	System      string   `json:"system,omitempty" jsonschema:"title=System,description=Optional system prompt."`
	MaxTokens   int      `json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate; defaults to 1024." validate:"gte=0,lte=200000"`
	Temperature *float32 `json:"temperature,omitempty" jsonschema:"title=Temperature,description=Optional sampling temperature between 0 and 1." validate:"omitempty,gte=0,lte=1"`
}

// Validate returns error for blank prompt
func (r *InvokeModelRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt must not be blank")
	}
	return nil
}

// Usage is the token usage
type Usage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
	TotalTokens  int32 `json:"total_tokens"`
}

// InvokeModelResult is the output of bedrock_invoke_model
type InvokeModelResult struct {
	ModelID    string `json:"model_id"`
	Text       string `json:"text"`
	StopReason string `json:"stop_reason"`
	Usage      Usage  `json:"usage"`
}

// InvokeModel sends the prompt with Converse API
func (p *Provider) InvokeModel(ctx context.Context, req *InvokeModelRequest) (*InvokeModelResult, error) {
	modelID := values.StringsCoalesce(req.ModelID, p.defaultModel)
	if modelID == "" {
		return nil, tools.NotConfigured("model_id is not specified and no default model is configured")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		Messages: []rtypes.Message{
			{
				Role:    rtypes.ConversationRoleUser,
				Content: []rtypes.ContentBlock{&rtypes.ContentBlockMemberText{Value: req.Prompt}},
			},
		},
		InferenceConfig: &rtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(values.NumbersCoalesce(req.MaxTokens, DefaultMaxTokens))),
			Temperature: req.Temperature,
		},
	}
	if req.System != "" {
		input.System = []rtypes.SystemContentBlock{&rtypes.SystemContentBlockMemberText{Value: req.System}}
	}

	out, err := p.runtime.Converse(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke model %s", modelID)
	}

	res := &InvokeModelResult{
		ModelID:    modelID,
		StopReason: string(out.StopReason),
		Usage:      UsageOf(out.Usage),
	}
	if msg, ok := out.Output.(*rtypes.ConverseOutputMemberMessage); ok {
		res.Text = TextOf(msg.Value)
	}
	return res, nil
}

// TextOf returns concatenated text blocks of the message
func TextOf(msg rtypes.Message) string {
	var parts []string
	for _, c := range msg.Content {
		if t, ok := c.(*rtypes.ContentBlockMemberText); ok && t.Value != "" {
			parts = append(parts, t.Value)
		}
	}
	return strings.Join(parts, "\n")
}

// UsageOf returns the token usage
func UsageOf(u *rtypes.TokenUsage) Usage {
	if u == nil {
		return Usage{}
	}
	return Usage{
		InputTokens:  aws.ToInt32(u.InputTokens),
		OutputTokens: aws.ToInt32(u.OutputTokens),
		TotalTokens:  aws.ToInt32(u.TotalTokens),
	}
}

// ProviderOf returns the model provider of the model id,
// supporting inference profiles like us.anthropic.claude-3-5-sonnet-20241022-v2:0
func ProviderOf(modelID string) string {
	parts := strings.Split(modelID, ".")
	if len(parts) >= 3 && len(parts[0]) == 2 && strings.ToLower(parts[0]) == parts[0] {
		return parts[1]
	}
	return parts[0]
}
