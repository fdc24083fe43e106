package orchestration

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/metricskey"
	"github.com/effective-security/xlog"
)

// Swarm defaults
const (
	DefaultMaxHandoffs      = 20
	DefaultMaxIterations    = 20
	DefaultExecutionTimeout = 15 * time.Minute
	DefaultNodeTimeout      = 5 * time.Minute
)

// SwarmOption configures the Swarm
type SwarmOption func(*Swarm)

// WithEntryPoint sets the agent started first, by default the first agent
func WithEntryPoint(name string) SwarmOption {
	return func(s *Swarm) {
		s.entry = name
	}
}

// WithMaxHandoffs limits the number of handoffs
func WithMaxHandoffs(n int) SwarmOption {
	return func(s *Swarm) {
		if n > 0 {
			s.maxHandoffs = n
		}
	}
}

// WithMaxIterations limits the number of agent invocations
func WithMaxIterations(n int) SwarmOption {
	return func(s *Swarm) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithExecutionTimeout limits the duration of the run
func WithExecutionTimeout(d time.Duration) SwarmOption {
	return func(s *Swarm) {
		if d > 0 {
			s.execTimeout = d
		}
	}
}

// WithNodeTimeout limits the duration of an agent invocation
func WithNodeTimeout(d time.Duration) SwarmOption {
	return func(s *Swarm) {
		if d > 0 {
			s.nodeTimeout = d
		}
	}
}

// WithRepetitiveHandoffDetection stops the run when the last window agents
// contain fewer than minUnique distinct agents. Zero window disables the check.
func WithRepetitiveHandoffDetection(window, minUnique int) SwarmOption {
	return func(s *Swarm) {
		s.detectWindow = window
		s.detectMinUnique = minUnique
	}
}

// Swarm runs agents that pass control to each other with handoffs
type Swarm struct {
	agents          map[string]Agent
	order           []string
	entry           string
	maxHandoffs     int
	maxIterations   int
	execTimeout     time.Duration
	nodeTimeout     time.Duration
	detectWindow    int
	detectMinUnique int
}

// SwarmResult is the result of a swarm run
type SwarmResult struct {
	Status Status `json:"status"`
	// Output is the output of the last agent
	Output      string        `json:"output"`
	Steps       []Step        `json:"steps"`
	NodeHistory []string      `json:"node_history"`
	Handoffs    int           `json:"handoffs"`
	Iterations  int           `json:"iterations"`
	Duration    time.Duration `json:"duration"`
}

// NewSwarm returns the swarm of agents with unique names
func NewSwarm(agents []Agent, opts ...SwarmOption) (*Swarm, error) {
	if len(agents) == 0 {
		return nil, errors.New("swarm must contain at least one agent")
	}

	s := &Swarm{
		agents:        map[string]Agent{},
		maxHandoffs:   DefaultMaxHandoffs,
		maxIterations: DefaultMaxIterations,
		execTimeout:   DefaultExecutionTimeout,
		nodeTimeout:   DefaultNodeTimeout,
	}
	for _, a := range agents {
		name := a.Name()
		if name == "" {
			return nil, errors.New("swarm agent name is empty")
		}
		if s.agents[name] != nil {
			return nil, errors.Newf("swarm agent %s already exists", name)
		}
		s.agents[name] = a
		s.order = append(s.order, name)
	}
	s.entry = s.order[0]

	for _, opt := range opts {
		opt(s)
	}
	if s.agents[s.entry] == nil {
		return nil, errors.Mark(errors.Newf("entry point %s: agent not found", s.entry), ErrUnknownAgent)
	}
	if s.detectWindow > 0 && s.detectMinUnique > s.detectWindow {
		return nil, errors.Newf("repetitive handoff detection: min unique agents %d exceeds window %d", s.detectMinUnique, s.detectWindow)
	}
	return s, nil
}

// Agents returns the agent names in the order added
func (s *Swarm) Agents() []string {
	return append([]string(nil), s.order...)
}

// EntryPoint returns the first agent
func (s *Swarm) EntryPoint() string {
	return s.entry
}

// Run executes the swarm. On failure, the partial result is returned with the error.
func (s *Swarm) Run(ctx context.Context, input string) (*SwarmResult, error) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()

	res := &SwarmResult{
		Status:      StatusCompleted,
		NodeHistory: []string{s.entry},
	}
	fail := func(err error) (*SwarmResult, error) {
		res.Status = StatusFailed
		res.Duration = time.Since(started)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "swarm_failed",
			"node_history", strings.Join(res.NodeHistory, ","),
			"err", err.Error())
		return res, err
	}

	current := s.entry
	for {
		if res.Iterations >= s.maxIterations {
			return fail(errors.Mark(errors.Newf("swarm exceeded %d iterations", s.maxIterations), ErrLimitExceeded))
		}
		res.Iterations++

		task := &Task{
			Input:   input,
			History: append([]Step(nil), res.Steps...),
			Peers:   s.peers(current),
		}
		resp, elapsed, err := Invoke(ctx, s.agents[current], task, s.nodeTimeout)
		if err != nil {
			return fail(err)
		}

		res.Steps = append(res.Steps, Step{
			Agent:    current,
			Output:   resp.Output,
			Handoff:  resp.Handoff,
			Duration: elapsed,
		})
		res.Output = resp.Output

		if resp.Handoff == nil || resp.Handoff.Agent == "" {
			break
		}

		target := resp.Handoff.Agent
		if s.agents[target] == nil {
			return fail(errors.Mark(errors.Newf("agent %s handed off to unknown agent %s", current, target), ErrUnknownAgent))
		}
		if res.Handoffs >= s.maxHandoffs {
			return fail(errors.Mark(errors.Newf("swarm exceeded %d handoffs", s.maxHandoffs), ErrLimitExceeded))
		}
		res.Handoffs++
		res.NodeHistory = append(res.NodeHistory, target)
		metricskey.StatsSwarmHandoffs.IncrCounter(1, current, target)

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "handoff",
			"from", current,
			"to", target)

		if s.isRepetitive(res.NodeHistory) {
			return fail(errors.Mark(errors.Newf("agents keep handing off between themselves: %s",
				strings.Join(res.NodeHistory[len(res.NodeHistory)-s.detectWindow:], " -> ")), ErrRepetitiveHandoff))
		}
		current = target
	}

	res.Duration = time.Since(started)
	return res, nil
}

func (s *Swarm) peers(current string) []string {
	peers := make([]string, 0, len(s.order)-1)
	for _, name := range s.order {
		if name != current {
			peers = append(peers, name)
		}
	}
	return peers
}

// isRepetitive returns true when the last window of the history
// contains fewer distinct agents than required
func (s *Swarm) isRepetitive(history []string) bool {
	if s.detectWindow <= 0 || len(history) < s.detectWindow {
		return false
	}
	unique := map[string]bool{}
	for _, name := range history[len(history)-s.detectWindow:] {
		unique[name] = true
	}
	return len(unique) < s.detectMinUnique
}
