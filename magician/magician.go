// Package magician builds agent orchestrations from the structured output of LLM:
// a single agent, a graph of agents, or a swarm of agents with handoffs.
package magician

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/orchestration"
	"github.com/effective-security/nexus/pkg/config"
	"github.com/effective-security/nexus/store"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus", "magician")

// AgentFactory creates agents from the spec
type AgentFactory interface {
	NewAgent(spec *AgentSpec) (orchestration.Agent, error)
}

// AgentFactoryFunc adapts a function to AgentFactory
type AgentFactoryFunc func(spec *AgentSpec) (orchestration.Agent, error)

// NewAgent calls the function
func (f AgentFactoryFunc) NewAgent(spec *AgentSpec) (orchestration.Agent, error) {
	return f(spec)
}

// Result is the uniform result of an orchestration run
type Result struct {
	ID       string               `json:"id"`
	Type     Type                 `json:"type"`
	Status   orchestration.Status `json:"status"`
	Output   string               `json:"output"`
	Steps    []orchestration.Step `json:"steps"`
	Duration time.Duration        `json:"duration"`
}

// Orchestration is a built orchestration ready to run
type Orchestration interface {
	Type() Type
	// Run executes the orchestration.
	// On failure, the partial result is returned with the error.
	Run(ctx context.Context, input string) (*Result, error)
}

// Option configures the Magician
type Option func(*Magician)

// WithDefaults sets the limits used when the spec does not specify them
func WithDefaults(cfg config.Orchestration) Option {
	return func(m *Magician) {
		m.defaults.MaxHandoffs = values.NumbersCoalesce(cfg.MaxHandoffs, m.defaults.MaxHandoffs)
		m.defaults.MaxIterations = values.NumbersCoalesce(cfg.MaxIterations, m.defaults.MaxIterations)
		if cfg.ExecutionTimeout > 0 {
			m.defaults.ExecutionTimeout = cfg.ExecutionTimeout
		}
		if cfg.NodeTimeout > 0 {
			m.defaults.NodeTimeout = cfg.NodeTimeout
		}
	}
}

// WithStore records every run in the store
func WithStore(s store.RunStore) Option {
	return func(m *Magician) {
		m.store = s
	}
}

// Magician builds orchestrations
type Magician struct {
	factory  AgentFactory
	defaults config.Orchestration
	store    store.RunStore
}

// New returns the Magician creating agents with the factory
func New(factory AgentFactory, opts ...Option) *Magician {
	m := &Magician{
		factory: factory,
		defaults: config.Orchestration{
			MaxHandoffs:      orchestration.DefaultMaxHandoffs,
			MaxIterations:    orchestration.DefaultMaxIterations,
			ExecutionTimeout: config.Duration(orchestration.DefaultExecutionTimeout),
			NodeTimeout:      config.Duration(orchestration.DefaultNodeTimeout),
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run parses the LLM output, builds the orchestration and runs it with the input
func (m *Magician) Run(ctx context.Context, llmOutput, input string) (*Result, error) {
	spec, err := Parse([]byte(llmOutput))
	if err != nil {
		return nil, err
	}
	o, err := m.Build(ctx, spec)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, input)
}

// Build returns the orchestration for the spec
func (m *Magician) Build(ctx context.Context, spec *Spec) (Orchestration, error) {
	if spec == nil {
		return nil, errors.Mark(errors.New("orchestration spec is nil"), ErrInvalidSpec)
	}
	if err := spec.Validate(); err != nil {
		return nil, errors.Mark(err, ErrInvalidSpec)
	}

	var o Orchestration
	var err error
	switch spec.Type {
	case TypeAgent:
		o, err = m.buildAgent(spec.Agent)
	case TypeGraph:
		o, err = m.buildGraph(spec.Graph)
	case TypeSwarm:
		o, err = m.buildSwarm(spec.Swarm)
	default:
		err = errors.Mark(errors.Newf("unsupported orchestration type: %s", spec.Type), ErrInvalidSpec)
	}
	if err != nil {
		return nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "orchestration_built",
		"type", spec.Type)

	if m.store != nil {
		o = &recorder{Orchestration: o, store: m.store}
	}
	return o, nil
}

func (m *Magician) newAgent(spec *AgentSpec) (orchestration.Agent, error) {
	a, err := m.factory.NewAgent(spec)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create agent %s", spec.Name)
	}
	return a, nil
}

func (m *Magician) buildAgent(spec *AgentSpec) (Orchestration, error) {
	a, err := m.newAgent(spec)
	if err != nil {
		return nil, err
	}
	return &single{
		agent:   a,
		timeout: m.defaults.ExecutionTimeout.Std(),
	}, nil
}

func (m *Magician) buildGraph(spec *GraphSpec) (Orchestration, error) {
	b := orchestration.NewGraphBuilder()
	for i := range spec.Nodes {
		n := &spec.Nodes[i]
		a, err := m.newAgent(&n.Agent)
		if err != nil {
			return nil, err
		}
		b.AddNode(n.ID, a)
	}
	for _, e := range spec.Edges {
		cond, err := ParseCondition(e.From, e.Condition)
		if err != nil {
			return nil, errors.Mark(err, ErrInvalidSpec)
		}
		b.AddEdge(e.From, e.To, cond)
	}

	g, err := b.SetEntryPoint(spec.EntryPoints...).
		SetExecutionTimeout(seconds(spec.ExecutionTimeout, m.defaults.ExecutionTimeout.Std())).
		SetNodeTimeout(seconds(spec.NodeTimeout, m.defaults.NodeTimeout.Std())).
		SetMaxNodeExecutions(spec.MaxNodeExecutions).
		SetCycleExecutionLimit(m.defaults.MaxIterations).
		ResetOnRevisit(spec.ResetOnRevisit).
		Build()
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidSpec)
	}
	return &graph{graph: g}, nil
}

func (m *Magician) buildSwarm(spec *SwarmSpec) (Orchestration, error) {
	agents := make([]orchestration.Agent, 0, len(spec.Agents))
	for i := range spec.Agents {
		a, err := m.newAgent(&spec.Agents[i])
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}

	opts := []orchestration.SwarmOption{
		orchestration.WithMaxHandoffs(values.NumbersCoalesce(spec.MaxHandoffs, m.defaults.MaxHandoffs)),
		orchestration.WithMaxIterations(values.NumbersCoalesce(spec.MaxIterations, m.defaults.MaxIterations)),
		orchestration.WithExecutionTimeout(seconds(spec.ExecutionTimeout, m.defaults.ExecutionTimeout.Std())),
		orchestration.WithNodeTimeout(seconds(spec.NodeTimeout, m.defaults.NodeTimeout.Std())),
		orchestration.WithRepetitiveHandoffDetection(spec.RepetitiveHandoffDetectionWindow, spec.RepetitiveHandoffMinUniqueAgents),
	}
	if spec.EntryPoint != "" {
		opts = append(opts, orchestration.WithEntryPoint(spec.EntryPoint))
	}

	s, err := orchestration.NewSwarm(agents, opts...)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidSpec)
	}
	return &swarm{swarm: s}, nil
}

func seconds(v float64, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v * float64(time.Second))
}

func newResult(t Type) *Result {
	return &Result{
		ID:     uuid.NewString(),
		Type:   t,
		Status: orchestration.StatusCompleted,
	}
}

type single struct {
	agent   orchestration.Agent
	timeout time.Duration
}

func (o *single) Type() Type {
	return TypeAgent
}

func (o *single) Run(ctx context.Context, input string) (*Result, error) {
	res := newResult(TypeAgent)
	resp, elapsed, err := orchestration.Invoke(ctx, o.agent, &orchestration.Task{Input: input}, o.timeout)
	res.Duration = elapsed
	if err != nil {
		res.Status = orchestration.StatusFailed
		return res, err
	}
	res.Output = resp.Output
	res.Steps = []orchestration.Step{{Agent: o.agent.Name(), Output: resp.Output, Duration: elapsed}}
	return res, nil
}

type graph struct {
	graph *orchestration.Graph
}

func (o *graph) Type() Type {
	return TypeGraph
}

func (o *graph) Run(ctx context.Context, input string) (*Result, error) {
	res := newResult(TypeGraph)
	gr, err := o.graph.Run(ctx, &orchestration.Task{Input: input})
	if gr != nil {
		res.Status = gr.Status
		res.Output = gr.Output()
		res.Steps = gr.Steps
		res.Duration = gr.Duration
	}
	if err != nil {
		res.Status = orchestration.StatusFailed
		return res, err
	}
	return res, nil
}

type swarm struct {
	swarm *orchestration.Swarm
}

func (o *swarm) Type() Type {
	return TypeSwarm
}

func (o *swarm) Run(ctx context.Context, input string) (*Result, error) {
	res := newResult(TypeSwarm)
	sr, err := o.swarm.Run(ctx, input)
	if sr != nil {
		res.Status = sr.Status
		res.Output = sr.Output
		res.Steps = sr.Steps
		res.Duration = sr.Duration
	}
	if err != nil {
		res.Status = orchestration.StatusFailed
		return res, err
	}
	return res, nil
}

// recorder saves the runs in the store
type recorder struct {
	Orchestration
	store store.RunStore
}

func (o *recorder) Run(ctx context.Context, input string) (*Result, error) {
	created := time.Now().UTC()
	res, err := o.Orchestration.Run(ctx, input)
	if res == nil {
		return res, err
	}

	run := &store.Run{
		ID:        res.ID,
		Type:      string(res.Type),
		Status:    res.Status,
		Input:     input,
		Output:    res.Output,
		Steps:     res.Steps,
		Duration:  res.Duration,
		CreatedAt: created,
	}
	if err != nil {
		run.Error = err.Error()
	}
	// the run result is returned even if it can not be recorded
	if serr := o.store.Save(ctx, run); serr != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "run_not_saved",
			"id", res.ID,
			"err", serr.Error())
	}
	return res, err
}
