package magician

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/encoding"
	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/tidwall/gjson"
	"sigs.k8s.io/yaml"
)

// ErrInvalidSpec is returned when the orchestration can not be parsed
var ErrInvalidSpec = errors.New("invalid orchestration spec")

// Parse returns the orchestration spec from LLM output in JSON or YAML,
// possibly wrapped in backticks or prose, in the versioned or a legacy shape.
func Parse(data []byte) (*Spec, error) {
	js, err := toJSON(data)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidSpec)
	}

	js, err = Migrate(js)
	if err != nil {
		return nil, errors.Mark(err, ErrInvalidSpec)
	}

	spec := new(Spec)
	if err = encoding.JSON.Unmarshal(js, spec); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode orchestration"), ErrInvalidSpec)
	}
	spec.setDefaults()
	if err = encoding.Validate(spec); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid orchestration"), ErrInvalidSpec)
	}
	if err = spec.Validate(); err != nil {
		return nil, errors.Mark(err, ErrInvalidSpec)
	}
	return spec, nil
}

func toJSON(data []byte) ([]byte, error) {
	text := bytes.TrimSpace(llmutils.BytesTrimBackticks(bytes.TrimSpace(data)))
	if len(text) == 0 {
		return nil, errors.New("orchestration is empty")
	}
	if llmutils.LooksLikeJSON(text) {
		return llmutils.CleanJSON(text), nil
	}

	js, err := yaml.YAMLToJSON(text)
	if err == nil && isOrchestration(js) {
		return js, nil
	}
	// prose around the JSON
	if clean := llmutils.CleanJSON(text); llmutils.LooksLikeJSON(clean) {
		return clean, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse orchestration")
	}
	return nil, errors.New("orchestration must be a JSON or YAML object")
}

var knownKeys = []string{
	"version", "type", "orchestration_type", "orchestration",
	"graph", "graph_config", "swarm", "swarm_config", "agent", "agent_config",
	"agents", "nodes", "edges", "name", "system_prompt",
}

// isOrchestration reports whether the document is an object with a known key,
// prose followed by JSON is also parsed as YAML mapping
func isOrchestration(js []byte) bool {
	doc := gjson.ParseBytes(js)
	if !doc.IsObject() {
		return false
	}
	for _, k := range knownKeys {
		if doc.Get(k).Exists() {
			return true
		}
	}
	return false
}
