// Package orchestration provides multi-agent execution patterns:
// a Graph of agents with conditional edges, and a Swarm of agents
// passing control to each other with handoffs.
package orchestration

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus", "orchestration")

var (
	// ErrInvalidGraph is returned by GraphBuilder.Build
	ErrInvalidGraph = errors.New("invalid graph")
	// ErrLimitExceeded is returned when a run exceeds its limits
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrUnknownAgent is returned when a handoff targets an agent not in the swarm
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrRepetitiveHandoff is returned when agents keep passing the task between themselves
	ErrRepetitiveHandoff = errors.New("repetitive handoff")
)

// Status of a run
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Agent executes a task
type Agent interface {
	Name() string
	Invoke(ctx context.Context, task *Task) (*Response, error)
}

// Resetter is implemented by agents with conversation state
// that can be cleared before the agent is invoked again
type Resetter interface {
	Reset()
}

// Step is the output of an agent that already ran
type Step struct {
	Agent    string        `json:"agent"`
	Output   string        `json:"output"`
	Handoff  *Handoff      `json:"handoff,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Task is the work given to an agent
type Task struct {
	// Input is the original request
	Input string
	// History holds the outputs of agents that ran before,
	// upstream nodes in a graph, or previous agents in a swarm
	History []Step
	// Peers lists the agents available for a handoff; empty outside of a swarm
	Peers []string
}

// Prompt returns the task as text for LLM
func (t *Task) Prompt() string {
	if len(t.History) == 0 {
		return t.Input
	}

	var b strings.Builder
	b.WriteString(t.Input)
	b.WriteString("\n\n# CONTEXT FROM PREVIOUS AGENTS\n")
	for _, s := range t.History {
		b.WriteString("\n## ")
		b.WriteString(s.Agent)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Output))
		b.WriteString("\n")
		if s.Handoff != nil && s.Handoff.Message != "" {
			b.WriteString("\nHandoff to ")
			b.WriteString(s.Handoff.Agent)
			b.WriteString(": ")
			b.WriteString(s.Handoff.Message)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Handoff passes control to another agent of the swarm
type Handoff struct {
	Agent   string `json:"agent"`
	Message string `json:"message,omitempty"`
}

// Response is the result of an agent invocation
type Response struct {
	Output  string
	Handoff *Handoff
}

// AgentFunc adapts a function to Agent
type AgentFunc struct {
	name string
	fn   func(ctx context.Context, task *Task) (*Response, error)
}

// NewAgentFunc returns the Agent calling fn
func NewAgentFunc(name string, fn func(ctx context.Context, task *Task) (*Response, error)) *AgentFunc {
	return &AgentFunc{name: name, fn: fn}
}

// Name returns the agent name
func (a *AgentFunc) Name() string {
	return a.name
}

// Invoke calls the function
func (a *AgentFunc) Invoke(ctx context.Context, task *Task) (*Response, error) {
	return a.fn(ctx, task)
}

// Invoke runs the agent with the timeout, zero timeout means no limit
func Invoke(ctx context.Context, agent Agent, task *Task, timeout time.Duration) (*Response, time.Duration, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := agent.Invoke(ctx, task)
	metricskey.PerfAgentInvoke.MeasureSince(started, agent.Name())
	elapsed := time.Since(started)

	if err == nil && resp == nil {
		err = errors.Newf("agent %s returned no response", agent.Name())
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, elapsed, errors.Wrapf(ctx.Err(), "agent %s timed out after %s", agent.Name(), timeout)
		}
		return nil, elapsed, errors.WithMessagef(err, "agent %s failed", agent.Name())
	}
	return resp, elapsed, nil
}
