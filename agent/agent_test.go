package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	rtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/agent"
	"github.com/effective-security/nexus/mocks/mockbedrock"
	"github.com/effective-security/nexus/orchestration"
	"github.com/effective-security/nexus/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type echoRequest struct {
	Text string `json:"text" jsonschema:"title=Text,description=The text to echo." validate:"required"`
}

type echoResult struct {
	Text string `json:"text"`
}

func newEcho(t *testing.T, name string) tools.ITool {
	tool, err := tools.NewBase(name, "Echoes the text.",
		func(_ context.Context, in *echoRequest) (*echoResult, error) {
			return &echoResult{Text: strings.ToUpper(in.Text)}, nil
		})
	require.NoError(t, err)
	return tool
}

func reply(stop rtypes.StopReason, blocks ...rtypes.ContentBlock) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		StopReason: stop,
		Output: &rtypes.ConverseOutputMemberMessage{
			Value: rtypes.Message{
				Role:    rtypes.ConversationRoleAssistant,
				Content: blocks,
			},
		},
		Usage: &rtypes.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(15),
		},
	}
}

func text(s string) rtypes.ContentBlock {
	return &rtypes.ContentBlockMemberText{Value: s}
}

func toolUse(id, name string, input map[string]any) rtypes.ContentBlock {
	return &rtypes.ContentBlockMemberToolUse{
		Value: rtypes.ToolUseBlock{
			ToolUseId: aws.String(id),
			Name:      aws.String(name),
			Input:     document.NewLazyDocument(input),
		},
	}
}

func toolResult(t *testing.T, msg rtypes.Message, i int) rtypes.ToolResultBlock {
	require.Equal(t, rtypes.ConversationRoleUser, msg.Role)
	require.Greater(t, len(msg.Content), i)
	res, ok := msg.Content[i].(*rtypes.ContentBlockMemberToolResult)
	require.True(t, ok, "tool result expected")
	return res.Value
}

func resultText(t *testing.T, res rtypes.ToolResultBlock) string {
	require.NotEmpty(t, res.Content)
	txt, ok := res.Content[0].(*rtypes.ToolResultContentBlockMemberText)
	require.True(t, ok)
	return txt.Value
}

func TestNewBedrock_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := mockbedrock.NewMockRuntimeAPI(ctrl)

	_, err := agent.NewBedrock(runtime, agent.Config{ModelID: "m"})
	assert.EqualError(t, err, "agent name is required")

	_, err = agent.NewBedrock(runtime, agent.Config{Name: "a"})
	assert.EqualError(t, err, "agent a: model is required")

	_, err = agent.NewBedrock(runtime, agent.Config{Name: "a", ModelID: "m", SystemPrompt: "{% if %}"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent a: invalid system prompt template")

	_, err = agent.NewBedrock(runtime, agent.Config{Name: "a", ModelID: "m"}, agent.WithTools(newEcho(t, agent.HandoffTool)))
	assert.EqualError(t, err, "agent a: tool name handoff_to_agent is reserved")

	_, err = agent.NewBedrock(runtime, agent.Config{Name: "a", ModelID: "m"}, agent.WithTools(newEcho(t, "echo"), newEcho(t, "echo")))
	require.Error(t, err)
}

func TestSystemPrompt(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, err := agent.NewBedrock(mockbedrock.NewMockRuntimeAPI(ctrl), agent.Config{
		Name:         "analyst",
		Description:  "cost analyst",
		ModelID:      "m",
		SystemPrompt: "You are {{ name }}, the {{ description }} for {{ region }}.",
		PromptVars:   map[string]any{"region": "us-east-1"},
	}, agent.WithTools(newEcho(t, "echo")))
	require.NoError(t, err)

	assert.Equal(t, "analyst", a.Name())
	assert.Equal(t, "cost analyst", a.Description())
	assert.Equal(t, []string{"echo"}, a.ToolNames())

	prompt, err := a.SystemPrompt(&orchestration.Task{Input: "x"})
	require.NoError(t, err)
	assert.Equal(t, "You are analyst, the cost analyst for us-east-1.", prompt)

	prompt, err = a.SystemPrompt(&orchestration.Task{Input: "x", Peers: []string{"writer", "reviewer"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "You are analyst, the cost analyst for us-east-1.\n\n# TEAM\n"))
	assert.Contains(t, prompt, "a team of agents: writer, reviewer.")
	assert.Contains(t, prompt, agent.HandoffTool)
}

func TestToolConfig(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, err := agent.NewBedrock(mockbedrock.NewMockRuntimeAPI(ctrl), agent.Config{Name: "a", ModelID: "m"})
	require.NoError(t, err)
	assert.Nil(t, a.ToolConfig(nil))

	tc := a.ToolConfig([]string{"b"})
	require.NotNil(t, tc)
	require.Len(t, tc.Tools, 1)
	spec, ok := tc.Tools[0].(*rtypes.ToolMemberToolSpec)
	require.True(t, ok)
	assert.Equal(t, agent.HandoffTool, aws.ToString(spec.Value.Name))

	a, err = agent.NewBedrock(mockbedrock.NewMockRuntimeAPI(ctrl), agent.Config{Name: "a", ModelID: "m"}, agent.WithTools(newEcho(t, "echo")))
	require.NoError(t, err)
	tc = a.ToolConfig(nil)
	require.Len(t, tc.Tools, 1)
	spec = tc.Tools[0].(*rtypes.ToolMemberToolSpec)
	assert.Equal(t, "echo", aws.ToString(spec.Value.Name))
	assert.Equal(t, "Echoes the text.", aws.ToString(spec.Value.Description))

	schema, ok := spec.Value.InputSchema.(*rtypes.ToolInputSchemaMemberJson)
	require.True(t, ok)
	js, err := schema.Value.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.Contains(t, string(js), `"text"`)
}

func TestInvoke_ToolLoop(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	runtime := mockbedrock.NewMockRuntimeAPI(ctrl)

	temperature := float32(0.3)
	a, err := agent.NewBedrock(runtime, agent.Config{
		Name:         "a",
		ModelID:      "anthropic.claude",
		SystemPrompt: "Be brief.",
		Temperature:  &temperature,
	}, agent.WithTools(newEcho(t, "echo")))
	require.NoError(t, err)

	first := runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			assert.Equal(t, "anthropic.claude", aws.ToString(in.ModelId))
			assert.Equal(t, int32(agent.DefaultMaxTokens), aws.ToInt32(in.InferenceConfig.MaxTokens))
			assert.Equal(t, float32(0.3), aws.ToFloat32(in.InferenceConfig.Temperature))
			require.Len(t, in.System, 1)
			assert.Equal(t, "Be brief.", in.System[0].(*rtypes.SystemContentBlockMemberText).Value)
			require.NotNil(t, in.ToolConfig)
			assert.Len(t, in.ToolConfig.Tools, 1)
			require.Len(t, in.Messages, 1)
			assert.Equal(t, "say hi", in.Messages[0].Content[0].(*rtypes.ContentBlockMemberText).Value)
			return reply(rtypes.StopReasonToolUse, text("calling echo"), toolUse("t1", "echo", map[string]any{"text": "hi"})), nil
		})
	runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			require.Len(t, in.Messages, 3)
			res := toolResult(t, in.Messages[2], 0)
			assert.Equal(t, "t1", aws.ToString(res.ToolUseId))
			assert.Equal(t, rtypes.ToolResultStatusSuccess, res.Status)

			env, err := tools.ParseEnvelope(resultText(t, res))
			require.NoError(t, err)
			require.True(t, env.IsSuccess())
			var out echoResult
			require.NoError(t, env.DecodeData(&out))
			assert.Equal(t, "HI", out.Text)
			return reply(rtypes.StopReasonEndTurn, text("done")), nil
		}).After(first)

	resp, err := a.Invoke(ctx, &orchestration.Task{Input: "say hi"})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Output)
	assert.Nil(t, resp.Handoff)
}

func TestInvoke_Handoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := mockbedrock.NewMockRuntimeAPI(ctrl)
	a, err := agent.NewBedrock(runtime, agent.Config{Name: "triage", ModelID: "m"})
	require.NoError(t, err)

	runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			require.NotNil(t, in.ToolConfig)
			require.Len(t, in.ToolConfig.Tools, 1)
			return reply(rtypes.StopReasonToolUse,
				toolUse("h1", agent.HandoffTool, map[string]any{"agent": "expert", "message": "please answer"})), nil
		})

	resp, err := a.Invoke(context.Background(), &orchestration.Task{Input: "q", Peers: []string{"expert"}})
	require.NoError(t, err)
	require.NotNil(t, resp.Handoff)
	assert.Equal(t, "expert", resp.Handoff.Agent)
	assert.Equal(t, "please answer", resp.Handoff.Message)
	// no text in the reply, the handoff message is the output
	assert.Equal(t, "please answer", resp.Output)
}

func TestInvoke_HandoffUnknownAgent(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := mockbedrock.NewMockRuntimeAPI(ctrl)
	a, err := agent.NewBedrock(runtime, agent.Config{Name: "triage", ModelID: "m"})
	require.NoError(t, err)

	first := runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).
		Return(reply(rtypes.StopReasonToolUse, toolUse("h1", agent.HandoffTool, map[string]any{"agent": "nobody"})), nil)
	runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			res := toolResult(t, in.Messages[2], 0)
			assert.Equal(t, rtypes.ToolResultStatusError, res.Status)
			assert.Equal(t, `unknown agent "nobody", available agents: expert`, resultText(t, res))
			return reply(rtypes.StopReasonEndTurn, text("answered myself")), nil
		}).After(first)

	resp, err := a.Invoke(context.Background(), &orchestration.Task{Input: "q", Peers: []string{"expert"}})
	require.NoError(t, err)
	assert.Nil(t, resp.Handoff)
	assert.Equal(t, "answered myself", resp.Output)
}

func TestInvoke_ToolCallsLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := mockbedrock.NewMockRuntimeAPI(ctrl)
	a, err := agent.NewBedrock(runtime, agent.Config{Name: "a", ModelID: "m", MaxToolCalls: 1}, agent.WithTools(newEcho(t, "echo")))
	require.NoError(t, err)

	runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).Return(reply(rtypes.StopReasonToolUse,
		toolUse("t1", "echo", map[string]any{"text": "a"}),
		toolUse("t2", "echo", map[string]any{"text": "b"}),
	), nil)

	_, err = a.Invoke(context.Background(), &orchestration.Task{Input: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrToolCallsLimit)
}

func TestInvoke_UnknownTools(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := mockbedrock.NewMockRuntimeAPI(ctrl)
	a, err := agent.NewBedrock(runtime, agent.Config{Name: "a", ModelID: "m"}, agent.WithTools(newEcho(t, "echo")))
	require.NoError(t, err)

	runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).
		Return(reply(rtypes.StopReasonToolUse, toolUse("t", "missing", map[string]any{})), nil).
		Times(4)

	_, err = a.Invoke(context.Background(), &orchestration.Task{Input: "x"})
	assert.EqualError(t, err, "agent a: the model keeps calling unknown tools")
}

func TestInvoke_ConverseError(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := mockbedrock.NewMockRuntimeAPI(ctrl)
	a, err := agent.NewBedrock(runtime, agent.Config{Name: "a", ModelID: "m"})
	require.NoError(t, err)

	runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).Return(nil, errors.New("throttled"))
	_, err = a.Invoke(context.Background(), &orchestration.Task{Input: "x"})
	assert.EqualError(t, err, "agent a: failed to converse with m: throttled")
}

func TestInvoke_KeepHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	runtime := mockbedrock.NewMockRuntimeAPI(ctrl)
	a, err := agent.NewBedrock(runtime, agent.Config{Name: "a", ModelID: "m", KeepHistory: true})
	require.NoError(t, err)

	var sizes []int
	runtime.EXPECT().Converse(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
			sizes = append(sizes, len(in.Messages))
			return reply(rtypes.StopReasonEndTurn, text("ok")), nil
		}).Times(3)

	ctx := context.Background()
	for range 2 {
		_, err = a.Invoke(ctx, &orchestration.Task{Input: "x"})
		require.NoError(t, err)
	}
	a.Reset()
	_, err = a.Invoke(ctx, &orchestration.Task{Input: "x"})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 1}, sizes)
}
