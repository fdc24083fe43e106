package magician

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
)

// Version is the current orchestration spec version
const Version = 1

// Type is the orchestration type
type Type string

const (
	TypeAgent Type = "agent"
	TypeGraph Type = "graph"
	TypeSwarm Type = "swarm"
)

// Spec is the versioned orchestration document
type Spec struct {
	Version int        `json:"version" validate:"eq=1"`
	Type    Type       `json:"type" validate:"oneof=agent graph swarm"`
	Agent   *AgentSpec `json:"agent,omitempty"`
	Graph   *GraphSpec `json:"graph,omitempty"`
	Swarm   *SwarmSpec `json:"swarm,omitempty"`
}

// AgentSpec specifies an agent
type AgentSpec struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	MaxTokens    int32    `json:"max_tokens,omitempty" validate:"gte=0"`
	Temperature  *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxToolCalls int      `json:"max_tool_calls,omitempty" validate:"gte=0"`
}

// NodeSpec is a graph node
type NodeSpec struct {
	ID    string    `json:"id" validate:"required"`
	Agent AgentSpec `json:"agent"`
}

// EdgeSpec is a graph edge.
// Condition is one of: empty, `contains:<text>`, `not_contains:<text>`,
// `equals:<text>` or `matches:<regexp>`, evaluated over the source node output.
type EdgeSpec struct {
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	Condition string `json:"condition,omitempty"`
}

// GraphSpec specifies a graph, timeouts are in seconds
type GraphSpec struct {
	Nodes             []NodeSpec `json:"nodes" validate:"required,min=1,dive"`
	Edges             []EdgeSpec `json:"edges,omitempty" validate:"dive"`
	EntryPoints       []string   `json:"entry_points,omitempty"`
	MaxNodeExecutions int        `json:"max_node_executions,omitempty" validate:"gte=0"`
	ExecutionTimeout  float64    `json:"execution_timeout,omitempty" validate:"gte=0"`
	NodeTimeout       float64    `json:"node_timeout,omitempty" validate:"gte=0"`
	ResetOnRevisit    bool       `json:"reset_on_revisit,omitempty"`
}

// SwarmSpec specifies a swarm, timeouts are in seconds
type SwarmSpec struct {
	Agents                           []AgentSpec `json:"agents" validate:"required,min=1,dive"`
	EntryPoint                       string      `json:"entry_point,omitempty"`
	MaxHandoffs                      int         `json:"max_handoffs,omitempty" validate:"gte=0"`
	MaxIterations                    int         `json:"max_iterations,omitempty" validate:"gte=0"`
	ExecutionTimeout                 float64     `json:"execution_timeout,omitempty" validate:"gte=0"`
	NodeTimeout                      float64     `json:"node_timeout,omitempty" validate:"gte=0"`
	RepetitiveHandoffDetectionWindow int         `json:"repetitive_handoff_detection_window,omitempty" validate:"gte=0"`
	RepetitiveHandoffMinUniqueAgents int         `json:"repetitive_handoff_min_unique_agents,omitempty" validate:"gte=0"`
}

// setDefaults names the graph node agents after the nodes
func (s *Spec) setDefaults() {
	if s.Graph == nil {
		return
	}
	for i := range s.Graph.Nodes {
		n := &s.Graph.Nodes[i]
		n.Agent.Name = values.StringsCoalesce(n.Agent.Name, n.ID)
	}
}

// Validate checks the references the tags can not express
func (s *Spec) Validate() error {
	switch s.Type {
	case TypeAgent:
		if s.Agent == nil {
			return errors.New("agent orchestration requires the agent section")
		}
	case TypeGraph:
		if s.Graph == nil {
			return errors.New("graph orchestration requires the graph section")
		}
		return s.Graph.validate()
	case TypeSwarm:
		if s.Swarm == nil {
			return errors.New("swarm orchestration requires the swarm section")
		}
		return s.Swarm.validate()
	}
	return nil
}

func (g *GraphSpec) validate() error {
	ids := map[string]bool{}
	for _, n := range g.Nodes {
		if ids[n.ID] {
			return errors.Newf("duplicate node id: %s", n.ID)
		}
		ids[n.ID] = true
	}
	for _, e := range g.Edges {
		if !ids[e.From] || !ids[e.To] {
			return errors.Newf("edge %s -> %s references unknown node", e.From, e.To)
		}
		if _, err := ParseCondition(e.From, e.Condition); err != nil {
			return err
		}
	}
	for _, id := range g.EntryPoints {
		if !ids[id] {
			return errors.Newf("entry point %s references unknown node", id)
		}
	}
	return nil
}

func (s *SwarmSpec) validate() error {
	names := map[string]bool{}
	for _, a := range s.Agents {
		if names[a.Name] {
			return errors.Newf("duplicate agent name: %s", a.Name)
		}
		names[a.Name] = true
	}
	if s.EntryPoint != "" && !names[s.EntryPoint] {
		return errors.Newf("entry point %s references unknown agent", s.EntryPoint)
	}
	return nil
}
