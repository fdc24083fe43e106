// Package agent provides orchestration agents backed by Bedrock Converse API,
// with a tool-use loop over the tools of the catalog.
package agent

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	rtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/orchestration"
	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/effective-security/nexus/tools"
	"github.com/effective-security/nexus/tools/bedrock"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/nikolalohinski/gonja"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus", "agent")

// HandoffTool is the name of the tool given to swarm agents
const HandoffTool = "handoff_to_agent"

// Defaults
const (
	DefaultMaxToolCalls = 10
	DefaultMaxTokens    = 4096
	// maxNotFound limits consecutive calls of unknown tools
	maxNotFound = 3
)

// ErrToolCallsLimit is returned when the model keeps calling tools
var ErrToolCallsLimit = errors.New("tool calls limit exceeded")

// Config specifies the agent
type Config struct {
	Name        string
	Description string
	// SystemPrompt is a Jinja template, rendered with the prompt variables
	// and `name`, `description`, `input`, `peers`, `tools`
	SystemPrompt string
	ModelID      string
	MaxTokens    int32
	Temperature  *float32
	MaxToolCalls int
	// KeepHistory retains the conversation between invocations, until Reset
	KeepHistory bool
	PromptVars  map[string]any
}

// Option configures the agent
type Option func(*BedrockAgent)

// WithTools sets the tools available to the agent
func WithTools(list ...tools.ITool) Option {
	return func(a *BedrockAgent) {
		a.tools = append(a.tools, list...)
	}
}

// WithCallbacks sets the callbacks of the tool calls
func WithCallbacks(list ...tools.Callback) Option {
	return func(a *BedrockAgent) {
		a.callbacks = append(a.callbacks, list...)
	}
}

// BedrockAgent is orchestration.Agent calling Bedrock Converse API
type BedrockAgent struct {
	cfg       Config
	runtime   bedrock.RuntimeAPI
	tools     []tools.ITool
	callbacks []tools.Callback
	registry  *tools.Registry
	render    func(vars map[string]any) (string, error)

	lock    sync.Mutex
	history []rtypes.Message
}

var (
	_ orchestration.Agent    = (*BedrockAgent)(nil)
	_ orchestration.Resetter = (*BedrockAgent)(nil)
)

// NewBedrock returns the agent
func NewBedrock(runtime bedrock.RuntimeAPI, cfg Config, opts ...Option) (*BedrockAgent, error) {
	if cfg.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if cfg.ModelID == "" {
		return nil, errors.Newf("agent %s: model is required", cfg.Name)
	}

	tpl, err := gonja.FromString(cfg.SystemPrompt)
	if err != nil {
		return nil, errors.Wrapf(err, "agent %s: invalid system prompt template", cfg.Name)
	}

	a := &BedrockAgent{
		cfg:     cfg,
		runtime: runtime,
		render: func(vars map[string]any) (string, error) {
			return tpl.Execute(vars)
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	a.registry = tools.NewRegistry(a.callbacks...)
	if err = a.registry.Register(a.tools...); err != nil {
		return nil, errors.WithMessagef(err, "agent %s", cfg.Name)
	}
	if _, ok := a.registry.Get(HandoffTool); ok {
		return nil, errors.Newf("agent %s: tool name %s is reserved", cfg.Name, HandoffTool)
	}
	return a, nil
}

// Name returns the agent name
func (a *BedrockAgent) Name() string {
	return a.cfg.Name
}

// Description returns the agent description
func (a *BedrockAgent) Description() string {
	return a.cfg.Description
}

// ToolNames returns the names of the agent tools
func (a *BedrockAgent) ToolNames() []string {
	return a.registry.Names()
}

// Reset clears the retained conversation
func (a *BedrockAgent) Reset() {
	a.lock.Lock()
	a.history = nil
	a.lock.Unlock()
}

// SystemPrompt returns the rendered system prompt for the task
func (a *BedrockAgent) SystemPrompt(task *orchestration.Task) (string, error) {
	vars := map[string]any{}
	for k, v := range a.cfg.PromptVars {
		vars[k] = v
	}
	vars["name"] = a.cfg.Name
	vars["description"] = a.cfg.Description
	vars["input"] = task.Input
	vars["peers"] = task.Peers
	vars["tools"] = a.registry.Names()

	prompt, err := a.render(vars)
	if err != nil {
		return "", errors.Wrapf(err, "agent %s: failed to render system prompt", a.cfg.Name)
	}
	prompt = strings.TrimSpace(prompt)

	if len(task.Peers) > 0 {
		var b strings.Builder
		b.WriteString(prompt)
		b.WriteString("\n\n# TEAM\nYou are ")
		b.WriteString(a.cfg.Name)
		b.WriteString(", a member of a team of agents: ")
		b.WriteString(strings.Join(task.Peers, ", "))
		b.WriteString(".\nWhen another agent is better suited for the rest of the task, call the ")
		b.WriteString(HandoffTool)
		b.WriteString(" tool with the agent name and a message describing what is left to do.")
		b.WriteString(" Otherwise complete the task and reply with the final answer.")
		prompt = strings.TrimSpace(b.String())
	}
	return prompt, nil
}

// ToolConfig returns the Converse tool configuration, nil without tools
func (a *BedrockAgent) ToolConfig(peers []string) *rtypes.ToolConfiguration {
	var list []rtypes.Tool
	for _, t := range a.registry.List() {
		list = append(list, toolSpec(t.Name(), t.Description(), schemaMap(t.Parameters())))
	}
	if len(peers) > 0 {
		list = append(list, toolSpec(HandoffTool,
			"Hands off the task to another agent of the team.",
			handoffSchema(peers)))
	}
	if len(list) == 0 {
		return nil
	}
	return &rtypes.ToolConfiguration{Tools: list}
}

func toolSpec(name, description string, schema map[string]any) rtypes.Tool {
	return &rtypes.ToolMemberToolSpec{
		Value: rtypes.ToolSpecification{
			Name:        aws.String(name),
			Description: aws.String(description),
			InputSchema: &rtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		},
	}
}

// schemaMap returns the parameters as generic map,
// the document encoder does not use json tags of schema structs
func schemaMap(params any) map[string]any {
	var m map[string]any
	js, err := json.Marshal(params)
	if err == nil {
		err = json.Unmarshal(js, &m)
	}
	if err != nil || m == nil {
		m = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return m
}

func handoffSchema(peers []string) map[string]any {
	enum := make([]any, len(peers))
	for i, p := range peers {
		enum[i] = p
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{
				"type":        "string",
				"description": "The agent to hand off to.",
				"enum":        enum,
			},
			"message": map[string]any{
				"type":        "string",
				"description": "What the agent should do next, with the relevant findings.",
			},
		},
		"required": []any{"agent", "message"},
	}
}

// Invoke runs the conversation until the model replies without tool calls,
// or calls the handoff tool
func (a *BedrockAgent) Invoke(ctx context.Context, task *orchestration.Task) (*orchestration.Response, error) {
	system, err := a.SystemPrompt(task)
	if err != nil {
		return nil, err
	}

	var messages []rtypes.Message
	if a.cfg.KeepHistory {
		a.lock.Lock()
		messages = slices.Clone(a.history)
		a.lock.Unlock()
	}
	messages = append(messages, rtypes.Message{
		Role:    rtypes.ConversationRoleUser,
		Content: []rtypes.ContentBlock{&rtypes.ContentBlockMemberText{Value: task.Prompt()}},
	})

	input := &bedrockruntime.ConverseInput{
		ModelId:    aws.String(a.cfg.ModelID),
		ToolConfig: a.ToolConfig(task.Peers),
		InferenceConfig: &rtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(values.NumbersCoalesce(a.cfg.MaxTokens, DefaultMaxTokens)),
			Temperature: a.cfg.Temperature,
		},
	}
	if system != "" {
		input.System = []rtypes.SystemContentBlock{&rtypes.SystemContentBlockMemberText{Value: system}}
	}

	toolsLimit := values.NumbersCoalesce(a.cfg.MaxToolCalls, DefaultMaxToolCalls)
	toolCalls := 0
	notFound := 0
	var usage bedrock.Usage

	for {
		input.Messages = messages
		out, err := a.runtime.Converse(ctx, input)
		if err != nil {
			return nil, errors.Wrapf(err, "agent %s: failed to converse with %s", a.cfg.Name, a.cfg.ModelID)
		}
		u := bedrock.UsageOf(out.Usage)
		usage.InputTokens += u.InputTokens
		usage.OutputTokens += u.OutputTokens
		usage.TotalTokens += u.TotalTokens

		msg, ok := out.Output.(*rtypes.ConverseOutputMemberMessage)
		if !ok {
			return nil, errors.Newf("agent %s: model returned no message", a.cfg.Name)
		}
		messages = append(messages, msg.Value)

		uses := toolUses(msg.Value)
		if out.StopReason != rtypes.StopReasonToolUse || len(uses) == 0 {
			a.keep(messages)
			logger.ContextKV(ctx, xlog.DEBUG,
				"agent", a.cfg.Name,
				"status", "completed",
				"stop_reason", out.StopReason,
				"tool_calls", toolCalls,
				"input_tokens", usage.InputTokens,
				"output_tokens", usage.OutputTokens)
			return &orchestration.Response{Output: bedrock.TextOf(msg.Value)}, nil
		}

		toolCalls += len(uses)
		if toolCalls > toolsLimit {
			return nil, errors.Mark(errors.Newf("agent %s: the tool calls limit of %d is exceeded", a.cfg.Name, toolsLimit), ErrToolCallsLimit)
		}

		var handoff *orchestration.Handoff
		results := make([]rtypes.ContentBlock, 0, len(uses))
		for _, use := range uses {
			name := aws.ToString(use.Name)
			args := toolInput(use)

			var result string
			status := rtypes.ToolResultStatusSuccess
			switch {
			case name == HandoffTool && len(task.Peers) > 0:
				handoff, result, err = parseHandoff(args, task.Peers)
				if err != nil {
					handoff = nil
					result = err.Error()
					status = rtypes.ToolResultStatusError
				}
			default:
				result, err = a.registry.Call(ctx, name, args)
				if err != nil {
					status = rtypes.ToolResultStatusError
					if errors.Is(err, tools.ErrNotFound) {
						notFound++
					}
				} else {
					notFound = 0
				}
			}

			logger.ContextKV(ctx, xlog.DEBUG,
				"agent", a.cfg.Name,
				"status", "tool_called",
				"tool", name,
				"result", llmutils.StringUpto(result, 128))

			results = append(results, &rtypes.ContentBlockMemberToolResult{
				Value: rtypes.ToolResultBlock{
					ToolUseId: use.ToolUseId,
					Content:   []rtypes.ToolResultContentBlock{&rtypes.ToolResultContentBlockMemberText{Value: result}},
					Status:    status,
				},
			})
		}
		messages = append(messages, rtypes.Message{
			Role:    rtypes.ConversationRoleUser,
			Content: results,
		})

		if notFound > maxNotFound {
			return nil, errors.Newf("agent %s: the model keeps calling unknown tools", a.cfg.Name)
		}
		if handoff != nil {
			a.keep(messages)
			return &orchestration.Response{
				Output:  values.StringsCoalesce(bedrock.TextOf(msg.Value), handoff.Message),
				Handoff: handoff,
			}, nil
		}
	}
}

func (a *BedrockAgent) keep(messages []rtypes.Message) {
	if !a.cfg.KeepHistory {
		return
	}
	a.lock.Lock()
	a.history = messages
	a.lock.Unlock()
}

func toolUses(msg rtypes.Message) []rtypes.ToolUseBlock {
	var list []rtypes.ToolUseBlock
	for _, c := range msg.Content {
		if tu, ok := c.(*rtypes.ContentBlockMemberToolUse); ok {
			list = append(list, tu.Value)
		}
	}
	return list
}

// toolInput returns the tool use input as JSON
func toolInput(use rtypes.ToolUseBlock) string {
	if use.Input == nil {
		return "{}"
	}
	js, err := use.Input.MarshalSmithyDocument()
	if err != nil {
		return "{}"
	}
	return string(js)
}

func parseHandoff(args string, peers []string) (*orchestration.Handoff, string, error) {
	var h orchestration.Handoff
	if err := json.Unmarshal([]byte(args), &h); err != nil {
		return nil, "", errors.Wrap(err, "invalid handoff input")
	}
	if !slices.Contains(peers, h.Agent) {
		return nil, "", errors.Newf("unknown agent %q, available agents: %s", h.Agent, strings.Join(peers, ", "))
	}
	return &h, "handed off to " + h.Agent, nil
}
