package magician_test

import (
	"testing"

	"github.com/effective-security/nexus/magician"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSON(t *testing.T) {
	out := "Here is the orchestration:\n```json\n" +
		`{"version":1,"type":"swarm","swarm":{"agents":[{"name":"a","tools":["s3_list_buckets"]},{"name":"b","temperature":0.5}],"entry_point":"b","node_timeout":1.5}}` +
		"\n```\nLet me know if you need changes."

	spec, err := magician.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, magician.TypeSwarm, spec.Type)
	require.NotNil(t, spec.Swarm)
	require.Len(t, spec.Swarm.Agents, 2)
	assert.Equal(t, []string{"s3_list_buckets"}, spec.Swarm.Agents[0].Tools)
	require.NotNil(t, spec.Swarm.Agents[1].Temperature)
	assert.Equal(t, float32(0.5), *spec.Swarm.Agents[1].Temperature)
	assert.Equal(t, "b", spec.Swarm.EntryPoint)
	assert.Equal(t, 1.5, spec.Swarm.NodeTimeout)
}

func TestParse_YAML(t *testing.T) {
	out := "```yaml\n" + `version: 1
type: graph
graph:
  nodes:
    - id: research
      agent:
        system_prompt: find the facts
    - id: writer
      agent:
        name: report_writer
        tools: [report_generate]
  edges:
    - from: research
      to: writer
      condition: "contains:done"
  max_node_executions: 5
` + "```"

	spec, err := magician.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, magician.TypeGraph, spec.Type)
	require.Len(t, spec.Graph.Nodes, 2)
	// node agent is named after the node
	assert.Equal(t, "research", spec.Graph.Nodes[0].Agent.Name)
	assert.Equal(t, "report_writer", spec.Graph.Nodes[1].Agent.Name)
	assert.Equal(t, []string{"report_generate"}, spec.Graph.Nodes[1].Agent.Tools)
	assert.Equal(t, "contains:done", spec.Graph.Edges[0].Condition)
	assert.Equal(t, 5, spec.Graph.MaxNodeExecutions)
}

func TestParse_SameSpec(t *testing.T) {
	js := `{"version":1,"type":"graph","graph":{"nodes":[{"id":"a","agent":{"model":"m","max_tokens":100}},{"id":"b"}],"edges":[{"from":"a","to":"b","condition":"matches:^ok"}],"entry_points":["a"]}}`
	yml := `
version: 1
type: graph
graph:
  nodes:
    - id: a
      agent: {model: m, max_tokens: 100}
    - id: b
  edges:
    - {from: a, to: b, condition: "matches:^ok"}
  entry_points: [a]
`
	legacy := `{"orchestration":{"type":"graph","config":{"nodes":[{"node_id":"a","agent":{"model_id":"m","max_tokens":100}},{"name":"b"}],"edges":[{"from_node":"a","to_node":"b","condition":"matches:^ok"}],"entry_point":"a"}}}`

	want, err := magician.Parse([]byte(js))
	require.NoError(t, err)
	for _, doc := range []string{yml, legacy} {
		got, err := magician.Parse([]byte(doc))
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestParse_Legacy(t *testing.T) {
	spec, err := magician.Parse([]byte(`{"graph":{"nodes":[{"id":"a","agent":{"prompt":"p"}},{"id":"b"}],"edges":[{"source":"a","target":"b"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, magician.Version, spec.Version)
	assert.Equal(t, magician.TypeGraph, spec.Type)
	assert.Equal(t, "p", spec.Graph.Nodes[0].Agent.SystemPrompt)
	assert.Equal(t, "b", spec.Graph.Nodes[1].Agent.Name)
	assert.Equal(t, "a", spec.Graph.Edges[0].From)

	spec, err = magician.Parse([]byte(`{"orchestration_type":"graph","agents":[{"name":"a"},{"name":"b"}],"graph":{"edges":[{"from":"a","to":"b"}]}}`))
	require.NoError(t, err)
	require.Len(t, spec.Graph.Nodes, 2)
	assert.Equal(t, "a", spec.Graph.Nodes[0].ID)
	assert.Equal(t, "b", spec.Graph.Edges[0].To)
}

func TestParse_Errors(t *testing.T) {
	tcs := []struct {
		name string
		doc  string
		err  string
	}{
		{"empty", "  ", "orchestration is empty"},
		{"prose", "not an orchestration", "orchestration must be a JSON or YAML object"},
		{"version", `{"version":2,"type":"agent","agent":{"name":"a"}}`, "invalid orchestration"},
		{"type", `{"version":1,"type":"workflow"}`, "invalid orchestration"},
		{"missing section", `{"version":1,"type":"graph"}`, "graph orchestration requires the graph section"},
		{"agent name", `{"version":1,"type":"agent","agent":{"system_prompt":"x"}}`, "invalid orchestration"},
		{"temperature", `{"version":1,"type":"agent","agent":{"name":"a","temperature":3}}`, "invalid orchestration"},
		{"duplicate node", `{"version":1,"type":"graph","graph":{"nodes":[{"id":"a"},{"id":"a"}]}}`, "duplicate node id: a"},
		{"unknown edge node", `{"version":1,"type":"graph","graph":{"nodes":[{"id":"a"}],"edges":[{"from":"a","to":"x"}]}}`, "edge a -> x references unknown node"},
		{"unknown entry point", `{"version":1,"type":"graph","graph":{"nodes":[{"id":"a"}],"entry_points":["x"]}}`, "entry point x references unknown node"},
		{"condition", `{"version":1,"type":"graph","graph":{"nodes":[{"id":"a"},{"id":"b"}],"edges":[{"from":"a","to":"b","condition":"if:x"}]}}`, `edge from a: unsupported condition "if:x"`},
		{"duplicate agent", `{"version":1,"type":"swarm","swarm":{"agents":[{"name":"a"},{"name":"a"}]}}`, "duplicate agent name: a"},
		{"unknown swarm entry", `{"version":1,"type":"swarm","swarm":{"agents":[{"name":"a"}],"entry_point":"b"}}`, "entry point b references unknown agent"},
		{"empty swarm", `{"version":1,"type":"swarm","swarm":{"agents":[]}}`, "invalid orchestration"},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := magician.Parse([]byte(tc.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, magician.ErrInvalidSpec)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}
