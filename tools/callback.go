package tools

import (
	"context"

	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/effective-security/xlog"
)

// LoggerCallback is a callback handler that prints to the logger.
type LoggerCallback struct {
	logger *xlog.PackageLogger
	// MaxLen limits the logged input and output
	MaxLen int
}

var _ Callback = (*LoggerCallback)(nil)

// NewLoggerCallback returns the callback, the package logger is used if l is nil
func NewLoggerCallback(l *xlog.PackageLogger) *LoggerCallback {
	if l == nil {
		l = logger
	}
	return &LoggerCallback{logger: l, MaxLen: 512}
}

func (l *LoggerCallback) OnToolStart(ctx context.Context, tool ITool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", tool.Name(),
		"input", llmutils.StringUpto(input, l.MaxLen),
	)
}

func (l *LoggerCallback) OnToolEnd(ctx context.Context, tool ITool, input string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", tool.Name(),
		"output", llmutils.StringUpto(output, l.MaxLen),
	)
}

func (l *LoggerCallback) OnToolError(ctx context.Context, tool ITool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", tool.Name(),
		"err", err.Error(),
	)
}
