package tools_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/mocks/mocktools"
	"github.com/effective-security/nexus/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	var calls atomic.Int32
	echo := newEcho(t, &calls)

	other := mocktools.NewMockITool(ctrl)
	other.EXPECT().Name().Return("Alpha").AnyTimes()
	other.EXPECT().Description().Return("First tool.").AnyTimes()

	cb := mocktools.NewMockCallback(ctrl)

	r := tools.NewRegistry(cb, tools.NewLoggerCallback(nil))
	require.NoError(t, r.Register(echo, other, nil))
	assert.Equal(t, 2, r.Len())

	err := r.Register(newEcho(t, &calls))
	assert.EqualError(t, err, "tool already registered: echo")

	assert.Equal(t, []string{"Alpha", "echo"}, r.Names())
	assert.Equal(t, "- **Alpha**: First tool.\n- **echo**: Echoes the text.\n", r.Describe())

	tl, ok := r.Get("ECHO")
	require.True(t, ok)
	assert.Equal(t, "echo", tl.Name())

	_, err = r.Subset("echo", "missing")
	assert.EqualError(t, err, "tool not found: missing")
	list, err := r.Subset("alpha")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	cb.EXPECT().OnToolStart(gomock.Any(), echo, `{"text":"hi"}`)
	cb.EXPECT().OnToolEnd(gomock.Any(), echo, `{"text":"hi"}`, gomock.Any())
	out, err := r.Call(ctx, "echo", `{"text":"hi"}`)
	require.NoError(t, err)
	env, err := tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.True(t, env.IsSuccess())

	cb.EXPECT().OnToolStart(gomock.Any(), echo, "bad")
	cb.EXPECT().OnToolError(gomock.Any(), echo, "bad", gomock.Any())
	out, err = r.Call(ctx, "echo", "bad")
	assert.True(t, errors.Is(err, tools.ErrFailedUnmarshalInput))
	env, err = tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, tools.ErrorTypeValidation, env.ErrorType)

	other.EXPECT().Call(gomock.Any(), "{}").Return(tools.Success("Alpha", "ok", false), nil)
	cb.EXPECT().OnToolStart(gomock.Any(), other, "{}")
	cb.EXPECT().OnToolEnd(gomock.Any(), other, "{}", gomock.Any())
	_, err = r.Call(ctx, "alpha", "{}")
	require.NoError(t, err)

	out, err = r.Call(ctx, "missing", "{}")
	assert.True(t, errors.Is(err, tools.ErrNotFound))
	env, err = tools.ParseEnvelope(out)
	require.NoError(t, err)
	assert.Equal(t, tools.ErrorTypeNotFound, env.ErrorType)
	assert.Equal(t, "missing", env.Tool)

	desc := tools.GetDescriptions(echo)
	assert.Contains(t, desc, `"Name": "echo"`)

	err = r.Register(mockNamed(ctrl, ""))
	assert.EqualError(t, err, "tool name is empty")
}

func mockNamed(ctrl *gomock.Controller, name string) tools.ITool {
	m := mocktools.NewMockITool(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	return m
}
