package magician

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Migrate converts the legacy orchestration shapes to the versioned document.
// The versioned documents are returned unchanged.
//
// Legacy shapes:
//   - flat: {"orchestration_type", "agents", "edges"}, the edges may be nested in "graph"
//   - {"graph_config": {...}} or {"graph": {...}}
//   - {"swarm_config": {...}} or {"swarm": {...}}
//   - {"agent_config": {...}}, {"agent": {...}} or a single agent with system_prompt
//   - {"orchestration": {"type", "config"}}
//
// When the type is not named, it is inferred: edges or nodes make a graph,
// several agents make a swarm, otherwise it is a single agent.
func Migrate(raw []byte) ([]byte, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("orchestration is not a valid JSON document")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, errors.New("orchestration must be a JSON object")
	}
	if doc.Get("version").Exists() {
		return raw, nil
	}

	typ, body := unwrap(doc)
	if typ == "" {
		typ = infer(body)
	}

	out := []byte(`{"version":1}`)
	out, _ = sjson.SetBytes(out, "type", typ)

	var err error
	switch Type(typ) {
	case TypeAgent:
		a := body
		if agents := body.Get("agents"); agents.IsArray() && len(agents.Array()) > 0 {
			a = agents.Array()[0]
		}
		out, err = sjson.SetRawBytes(out, "agent", migrateAgent(a))
	case TypeGraph:
		out, err = sjson.SetRawBytes(out, "graph", migrateGraph(body))
	case TypeSwarm:
		out, err = sjson.SetRawBytes(out, "swarm", migrateSwarm(body))
	default:
		return nil, errors.Newf("unsupported orchestration type: %s", typ)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}

// unwrap returns the declared type, if any, and the object holding the configuration
func unwrap(doc gjson.Result) (string, gjson.Result) {
	if o := doc.Get("orchestration"); o.IsObject() {
		typ := first(o, "type", "orchestration_type").String()
		if cfg := o.Get("config"); cfg.IsObject() {
			if typ == "" {
				return unwrap(cfg)
			}
			return typ, cfg
		}
		return typ, o
	}
	declared := first(doc, "orchestration_type", "type").String()
	for _, c := range []struct {
		typ  Type
		keys []string
	}{
		{TypeGraph, []string{"graph_config", "graph"}},
		{TypeSwarm, []string{"swarm_config", "swarm"}},
		{TypeAgent, []string{"agent_config", "agent"}},
	} {
		for _, k := range c.keys {
			if v := doc.Get(k); v.IsObject() {
				return values.StringsCoalesce(declared, string(c.typ)), merge(doc, v)
			}
		}
	}
	return declared, doc
}

// containers are the keys holding a nested configuration
var containers = map[string]bool{
	"orchestration_type": true,
	"type":               true,
	"graph_config":       true,
	"graph":              true,
	"swarm_config":       true,
	"swarm":              true,
	"agent_config":       true,
	"agent":              true,
}

// merge returns the nested configuration with the top level keys it does not define,
// the flat shape keeps the agents at the top level and the edges in the nested object
func merge(doc, nested gjson.Result) gjson.Result {
	defined := nested.Map()
	out := []byte(nested.Raw)
	doc.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if _, ok := defined[key]; ok || containers[key] {
			return true
		}
		if raw, err := sjson.SetRawBytes(out, gjson.Escape(key), []byte(v.Raw)); err == nil {
			out = raw
		}
		return true
	})
	return gjson.ParseBytes(out)
}

func infer(body gjson.Result) string {
	if body.Get("edges").IsArray() || body.Get("nodes").IsArray() {
		return string(TypeGraph)
	}
	if agents := body.Get("agents"); agents.IsArray() && len(agents.Array()) > 1 {
		return string(TypeSwarm)
	}
	return string(TypeAgent)
}

func migrateAgent(a gjson.Result) []byte {
	out := []byte(`{}`)
	out = set(out, "name", first(a, "name", "agent_name", "id"))
	out = set(out, "description", first(a, "description"))
	out = set(out, "system_prompt", first(a, "system_prompt", "prompt", "instructions"))
	out = set(out, "model", first(a, "model", "model_id"))
	out = set(out, "max_tokens", first(a, "max_tokens"))
	out = set(out, "temperature", first(a, "temperature"))
	out = set(out, "max_tool_calls", first(a, "max_tool_calls"))

	var names []string
	for _, t := range a.Get("tools").Array() {
		if t.IsObject() {
			names = append(names, first(t, "name", "tool_name").String())
		} else if t.String() != "" {
			names = append(names, t.String())
		}
	}
	if len(names) > 0 {
		out, _ = sjson.SetBytes(out, "tools", names)
	}
	return out
}

func migrateGraph(g gjson.Result) []byte {
	out := []byte(`{"nodes":[]}`)

	nodes := g.Get("nodes").Array()
	if len(nodes) == 0 {
		// flat shape: every agent is a node named after the agent
		nodes = g.Get("agents").Array()
	}
	for _, n := range nodes {
		agent := n
		if a := first(n, "agent", "agent_config"); a.IsObject() {
			agent = a
		} else if a.Type == gjson.String {
			// the node references an agent of the agents list
			agent = byName(g.Get("agents"), a.String())
			if !agent.Exists() {
				agent = gjson.Parse(`{}`)
			}
			agent, _ = withName(agent, a.String())
		}
		id := first(n, "id", "node_id", "name")
		if !id.Exists() {
			id = first(agent, "name", "agent_name")
		}

		node := []byte(`{}`)
		node, _ = sjson.SetBytes(node, "id", id.String())
		node, _ = sjson.SetRawBytes(node, "agent", migrateAgent(agent))
		out, _ = sjson.SetRawBytes(out, "nodes.-1", node)
	}

	for _, e := range g.Get("edges").Array() {
		edge := []byte(`{}`)
		edge = set(edge, "from", first(e, "from", "from_node", "source"))
		edge = set(edge, "to", first(e, "to", "to_node", "target"))
		edge = set(edge, "condition", first(e, "condition"))
		out, _ = sjson.SetRawBytes(out, "edges.-1", edge)
	}

	if ep := first(g, "entry_points", "entry_point"); ep.Exists() {
		var ids []string
		if ep.IsArray() {
			for _, v := range ep.Array() {
				ids = append(ids, v.String())
			}
		} else if ep.String() != "" {
			ids = append(ids, ep.String())
		}
		if len(ids) > 0 {
			out, _ = sjson.SetBytes(out, "entry_points", ids)
		}
	}
	out = set(out, "max_node_executions", first(g, "max_node_executions", "max_executions"))
	out = set(out, "execution_timeout", first(g, "execution_timeout"))
	out = set(out, "node_timeout", first(g, "node_timeout"))
	out = set(out, "reset_on_revisit", first(g, "reset_on_revisit"))
	return out
}

func migrateSwarm(s gjson.Result) []byte {
	out := []byte(`{"agents":[]}`)
	for _, a := range first(s, "agents", "nodes").Array() {
		if n := first(a, "agent", "agent_config"); n.IsObject() {
			a = n
		}
		out, _ = sjson.SetRawBytes(out, "agents.-1", migrateAgent(a))
	}
	out = set(out, "entry_point", first(s, "entry_point", "entry_agent"))
	out = set(out, "max_handoffs", first(s, "max_handoffs"))
	out = set(out, "max_iterations", first(s, "max_iterations"))
	out = set(out, "execution_timeout", first(s, "execution_timeout"))
	out = set(out, "node_timeout", first(s, "node_timeout"))
	out = set(out, "repetitive_handoff_detection_window", first(s, "repetitive_handoff_detection_window"))
	out = set(out, "repetitive_handoff_min_unique_agents", first(s, "repetitive_handoff_min_unique_agents"))
	return out
}

func byName(agents gjson.Result, name string) gjson.Result {
	for _, a := range agents.Array() {
		if first(a, "name", "agent_name").String() == name {
			return a
		}
	}
	return gjson.Result{}
}

func withName(agent gjson.Result, name string) (gjson.Result, error) {
	if first(agent, "name", "agent_name").Exists() {
		return agent, nil
	}
	raw, err := sjson.Set(agent.Raw, "name", name)
	if err != nil {
		return agent, errors.WithStack(err)
	}
	return gjson.Parse(raw), nil
}

// first returns the value of the first existing key
func first(v gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// set copies the raw value when it exists
func set(doc []byte, path string, v gjson.Result) []byte {
	if !v.Exists() {
		return doc
	}
	out, err := sjson.SetRawBytes(doc, path, []byte(v.Raw))
	if err != nil {
		return doc
	}
	return out
}
