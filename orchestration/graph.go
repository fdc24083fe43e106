package orchestration

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/metricskey"
	"github.com/effective-security/xlog"
	"golang.org/x/sync/errgroup"
)

// Condition decides if an edge is traversed, given the state after
// the source node completed
type Condition func(state *GraphState) bool

// Edge connects two nodes
type Edge struct {
	From      string
	To        string
	Condition Condition
}

// GraphState is the state of a graph run
type GraphState struct {
	Task    *Task
	Results map[string]*NodeResult
}

// Output returns the latest output of the node
func (s *GraphState) Output(node string) string {
	if r := s.Results[node]; r != nil {
		return r.Output
	}
	return ""
}

// NodeResult is the result of a node execution
type NodeResult struct {
	Node       string        `json:"node"`
	Status     Status        `json:"status"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	Executions int           `json:"executions"`
	Duration   time.Duration `json:"duration"`
}

// GraphResult is the result of a graph run
type GraphResult struct {
	Status         Status                 `json:"status"`
	Results        map[string]*NodeResult `json:"results"`
	ExecutionOrder []string               `json:"execution_order"`
	// Steps holds the output of every node execution, in order
	Steps []Step `json:"steps"`
	// Outputs holds the outputs of the last wave of nodes
	Outputs  []Step        `json:"outputs"`
	Duration time.Duration `json:"duration"`
}

// Output returns the outputs of the last wave joined
func (r *GraphResult) Output() string {
	switch len(r.Outputs) {
	case 0:
		return ""
	case 1:
		return r.Outputs[0].Output
	}
	var b strings.Builder
	for i, s := range r.Outputs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(s.Agent)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Output))
	}
	return b.String()
}

// GraphBuilder builds a Graph
type GraphBuilder struct {
	nodes          map[string]Agent
	order          []string
	edges          []Edge
	entry          []string
	execTimeout    time.Duration
	nodeTimeout    time.Duration
	maxExecutions  int
	cycleLimit     int
	resetOnRevisit bool
	errs           []error
}

// NewGraphBuilder returns an empty builder
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		nodes: map[string]Agent{},
	}
}

// AddNode adds the agent as node with the id
func (b *GraphBuilder) AddNode(id string, agent Agent) *GraphBuilder {
	switch {
	case id == "":
		b.errs = append(b.errs, errors.New("node id is empty"))
	case agent == nil:
		b.errs = append(b.errs, errors.Newf("node %s: agent is nil", id))
	case b.nodes[id] != nil:
		b.errs = append(b.errs, errors.Newf("node %s already exists", id))
	default:
		b.nodes[id] = agent
		b.order = append(b.order, id)
	}
	return b
}

// AddEdge connects the nodes, the condition is optional
func (b *GraphBuilder) AddEdge(from, to string, cond Condition) *GraphBuilder {
	b.edges = append(b.edges, Edge{From: from, To: to, Condition: cond})
	return b
}

// SetEntryPoint sets the nodes started first.
// By default these are the nodes without incoming edges.
func (b *GraphBuilder) SetEntryPoint(ids ...string) *GraphBuilder {
	b.entry = append(b.entry, ids...)
	return b
}

// SetExecutionTimeout limits the duration of the run
func (b *GraphBuilder) SetExecutionTimeout(d time.Duration) *GraphBuilder {
	b.execTimeout = d
	return b
}

// SetNodeTimeout limits the duration of a node execution
func (b *GraphBuilder) SetNodeTimeout(d time.Duration) *GraphBuilder {
	b.nodeTimeout = d
	return b
}

// SetMaxNodeExecutions limits the total number of node executions,
// required for graphs with cycles
func (b *GraphBuilder) SetMaxNodeExecutions(n int) *GraphBuilder {
	b.maxExecutions = n
	return b
}

// SetCycleExecutionLimit sets the max node executions used when the graph has cycles
// and SetMaxNodeExecutions was not called with a positive value
func (b *GraphBuilder) SetCycleExecutionLimit(n int) *GraphBuilder {
	b.cycleLimit = n
	return b
}

// ResetOnRevisit resets the agent state when a node is executed again
func (b *GraphBuilder) ResetOnRevisit(enabled bool) *GraphBuilder {
	b.resetOnRevisit = enabled
	return b
}

// Build validates and returns the graph
func (b *GraphBuilder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Mark(errors.Join(b.errs...), ErrInvalidGraph)
	}
	if len(b.nodes) == 0 {
		return nil, errors.Mark(errors.New("graph must contain at least one node"), ErrInvalidGraph)
	}

	incoming := map[string][]Edge{}
	outgoing := map[string][]Edge{}
	for _, e := range b.edges {
		if b.nodes[e.From] == nil {
			return nil, errors.Mark(errors.Newf("edge %s -> %s: source node not found", e.From, e.To), ErrInvalidGraph)
		}
		if b.nodes[e.To] == nil {
			return nil, errors.Mark(errors.Newf("edge %s -> %s: target node not found", e.From, e.To), ErrInvalidGraph)
		}
		incoming[e.To] = append(incoming[e.To], e)
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	entry := slices.Clone(b.entry)
	for _, id := range entry {
		if b.nodes[id] == nil {
			return nil, errors.Mark(errors.Newf("entry point %s: node not found", id), ErrInvalidGraph)
		}
	}
	if len(entry) == 0 {
		for _, id := range b.order {
			if len(incoming[id]) == 0 {
				entry = append(entry, id)
			}
		}
		if len(entry) == 0 {
			return nil, errors.Mark(errors.New("graph has no entry point: every node has an incoming edge"), ErrInvalidGraph)
		}
	}
	entry = unique(entry)

	maxExecutions := b.maxExecutions
	cyclic := hasCycle(b.order, outgoing)
	if cyclic && maxExecutions <= 0 {
		maxExecutions = b.cycleLimit
	}
	if cyclic && maxExecutions <= 0 {
		return nil, errors.Mark(errors.New("graph has cycles: max node executions must be set"), ErrInvalidGraph)
	}

	return &Graph{
		nodes:          b.nodes,
		order:          b.order,
		incoming:       incoming,
		outgoing:       outgoing,
		entry:          entry,
		execTimeout:    b.execTimeout,
		nodeTimeout:    b.nodeTimeout,
		maxExecutions:  maxExecutions,
		resetOnRevisit: b.resetOnRevisit,
		cyclic:         cyclic,
	}, nil
}

func hasCycle(nodes []string, outgoing map[string][]Edge) bool {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, e := range outgoing[id] {
			switch color[e.To] {
			case grey:
				return true
			case white:
				if visit(e.To) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for _, id := range nodes {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// Graph executes agents in dependency order.
// Nodes that become ready in the same wave run concurrently.
type Graph struct {
	nodes          map[string]Agent
	order          []string
	incoming       map[string][]Edge
	outgoing       map[string][]Edge
	entry          []string
	execTimeout    time.Duration
	nodeTimeout    time.Duration
	maxExecutions  int
	resetOnRevisit bool
	cyclic         bool
}

// EntryPoints returns the nodes started first
func (g *Graph) EntryPoints() []string {
	return slices.Clone(g.entry)
}

// Nodes returns the node ids in the order added
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Run executes the graph. On failure, the partial result is returned with the error.
func (g *Graph) Run(ctx context.Context, task *Task) (*GraphResult, error) {
	started := time.Now()
	if g.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.execTimeout)
		defer cancel()
	}

	state := &GraphState{
		Task:    task,
		Results: map[string]*NodeResult{},
	}
	res := &GraphResult{
		Status:  StatusCompleted,
		Results: state.Results,
	}

	executions := 0
	wave := g.entry
	for len(wave) > 0 {
		if g.maxExecutions > 0 && executions+len(wave) > g.maxExecutions {
			res.Status = StatusFailed
			res.Duration = time.Since(started)
			return res, errors.Mark(errors.Newf("graph exceeded %d node executions", g.maxExecutions), ErrLimitExceeded)
		}
		executions += len(wave)

		steps, err := g.runWave(ctx, state, wave)
		res.ExecutionOrder = append(res.ExecutionOrder, wave...)
		if err != nil {
			res.Status = StatusFailed
			res.Duration = time.Since(started)
			return res, err
		}
		res.Steps = append(res.Steps, steps...)
		res.Outputs = steps
		wave = g.next(state, wave)
	}

	res.Duration = time.Since(started)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "graph_completed",
		"executions", executions,
		"duration", res.Duration.String())
	return res, nil
}

func (g *Graph) runWave(ctx context.Context, state *GraphState, wave []string) ([]Step, error) {
	// inputs are built before the wave starts, so concurrent nodes
	// see only the results of the previous waves
	tasks := make([]*Task, len(wave))
	for i, id := range wave {
		tasks[i] = g.nodeTask(state, id)
	}

	var mu sync.Mutex
	steps := make([]Step, len(wave))
	eg, ctx := errgroup.WithContext(ctx)
	for i, id := range wave {
		agent := g.nodes[id]

		mu.Lock()
		prev := state.Results[id]
		mu.Unlock()
		if prev != nil && g.resetOnRevisit {
			if r, ok := agent.(Resetter); ok {
				r.Reset()
			}
		}

		eg.Go(func() error {
			resp, elapsed, err := Invoke(ctx, agent, tasks[i], g.nodeTimeout)

			nr := &NodeResult{
				Node:     id,
				Status:   StatusCompleted,
				Duration: elapsed,
			}
			if prev != nil {
				nr.Executions = prev.Executions
			}
			nr.Executions++
			if err != nil {
				nr.Status = StatusFailed
				nr.Error = err.Error()
			} else {
				nr.Output = resp.Output
				steps[i] = Step{Agent: id, Output: resp.Output, Duration: elapsed}
			}
			metricskey.StatsGraphNodesExecuted.IncrCounter(1, id, string(nr.Status))

			mu.Lock()
			state.Results[id] = nr
			mu.Unlock()

			logger.ContextKV(ctx, xlog.DEBUG,
				"node", id,
				"status", "node_"+string(nr.Status),
				"duration", elapsed.String())
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return steps, nil
}

// nodeTask returns the task with outputs of the upstream nodes
func (g *Graph) nodeTask(state *GraphState, id string) *Task {
	t := &Task{
		Input: state.Task.Input,
	}
	t.History = append(t.History, state.Task.History...)
	for _, e := range g.incoming[id] {
		if r := state.Results[e.From]; r != nil && r.Status == StatusCompleted {
			t.History = append(t.History, Step{Agent: e.From, Output: r.Output, Duration: r.Duration})
		}
	}
	return t
}

// next returns the nodes ready after the wave: a node is ready when an edge
// from the wave is satisfied, and all its unconditional sources completed.
func (g *Graph) next(state *GraphState, wave []string) []string {
	inWave := map[string]bool{}
	for _, id := range wave {
		inWave[id] = true
	}

	var ready []string
	for _, id := range g.order {
		triggered := false
		depsDone := true
		for _, e := range g.incoming[id] {
			done := state.Results[e.From] != nil && state.Results[e.From].Status == StatusCompleted
			if inWave[e.From] && (e.Condition == nil || e.Condition(state)) {
				triggered = true
			}
			// in a cycle the back edge source is not complete on the first visit
			if e.Condition == nil && !done && !g.cyclic {
				depsDone = false
			}
		}
		if triggered && depsDone {
			ready = append(ready, id)
		}
	}
	return ready
}

// unique removes the repeated ids, keeping the first occurrence
func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
