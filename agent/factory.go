package agent

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/magician"
	"github.com/effective-security/nexus/orchestration"
	"github.com/effective-security/nexus/pkg/config"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/nexus/tools/bedrock"
	"github.com/effective-security/x/values"
)

// FactoryOption configures the Factory
type FactoryOption func(*Factory)

// WithMaxToolCalls sets the tool calls limit of agents without one
func WithMaxToolCalls(n int) FactoryOption {
	return func(f *Factory) {
		f.maxToolCalls = n
	}
}

// WithPromptVars sets the variables of the system prompt templates
func WithPromptVars(vars map[string]any) FactoryOption {
	return func(f *Factory) {
		f.promptVars = vars
	}
}

// WithFactoryCallbacks sets the callbacks of the agents tool calls
func WithFactoryCallbacks(list ...tools.Callback) FactoryOption {
	return func(f *Factory) {
		f.callbacks = append(f.callbacks, list...)
	}
}

// WithKeepHistory makes the agents retain the conversation between invocations
func WithKeepHistory(enabled bool) FactoryOption {
	return func(f *Factory) {
		f.keepHistory = enabled
	}
}

// Factory creates Bedrock agents with the tools of the registry
type Factory struct {
	runtime      bedrock.RuntimeAPI
	registry     *tools.Registry
	defaults     config.Bedrock
	maxToolCalls int
	promptVars   map[string]any
	callbacks    []tools.Callback
	keepHistory  bool
}

var _ magician.AgentFactory = (*Factory)(nil)

// NewFactory returns the factory
func NewFactory(runtime bedrock.RuntimeAPI, registry *tools.Registry, defaults config.Bedrock, opts ...FactoryOption) *Factory {
	f := &Factory{
		runtime:      runtime,
		registry:     registry,
		defaults:     defaults,
		maxToolCalls: DefaultMaxToolCalls,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewAgent returns the agent for the spec
func (f *Factory) NewAgent(spec *magician.AgentSpec) (orchestration.Agent, error) {
	if spec == nil {
		return nil, errors.New("agent spec is nil")
	}

	var list []tools.ITool
	if len(spec.Tools) > 0 {
		if f.registry == nil {
			return nil, errors.Newf("agent %s: tools are not available", spec.Name)
		}
		var err error
		list, err = f.registry.Subset(spec.Tools...)
		if err != nil {
			return nil, errors.WithMessagef(err, "agent %s", spec.Name)
		}
	}

	temperature := spec.Temperature
	if temperature == nil && f.defaults.Temperature > 0 {
		t := f.defaults.Temperature
		temperature = &t
	}

	a, err := NewBedrock(f.runtime, Config{
		Name:         spec.Name,
		Description:  spec.Description,
		SystemPrompt: spec.SystemPrompt,
		ModelID:      values.StringsCoalesce(spec.Model, f.defaults.ModelID),
		MaxTokens:    values.NumbersCoalesce(spec.MaxTokens, f.defaults.MaxTokens),
		Temperature:  temperature,
		MaxToolCalls: values.NumbersCoalesce(spec.MaxToolCalls, f.maxToolCalls),
		KeepHistory:  f.keepHistory,
		PromptVars:   f.promptVars,
	}, WithTools(list...), WithCallbacks(f.callbacks...))
	if err != nil {
		return nil, err
	}
	return a, nil
}
