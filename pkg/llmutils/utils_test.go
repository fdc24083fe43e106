package llmutils_test

import (
	"testing"

	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/stretchr/testify/assert"
)

func Test_CleanJSON(t *testing.T) {
	llmOutput := "\n```json\n\n{\"city\": \"Paris\", \"country\": \"France\"}\n\n```\n\n"
	clean := llmutils.CleanJSON([]byte(llmOutput))

	expected := "{\"city\": \"Paris\", \"country\": \"France\"}"
	assert.Equal(t, expected, string(clean))

	llmOutput = "Here you go:\n```json\n\n[{\"city\": \"Paris\", \"country\": \"France\"}]\n```\n\n"
	clean = llmutils.CleanJSON([]byte(llmOutput))

	expected = "[{\"city\": \"Paris\", \"country\": \"France\"}]"
	assert.Equal(t, expected, string(clean))

	assert.Equal(t, "no json here", string(llmutils.CleanJSON([]byte("no json here"))))
}

func Test_TrimBackticks(t *testing.T) {
	expected := "{\"city\": \"Paris\", \"country\": \"France\"}"

	assert.Equal(t, expected, llmutils.TrimBackticks("\n```json\n\n{\"city\": \"Paris\", \"country\": \"France\"}\n\n```\n\n"))
	assert.Equal(t, expected, llmutils.TrimBackticks(expected))
	assert.Equal(t, expected, llmutils.TrimBackticks("\n```\n\n{\"city\": \"Paris\", \"country\": \"France\"}\n\n```\n\n"))
	assert.Equal(t, expected, llmutils.TrimBackticks("\n```{\"city\": \"Paris\", \"country\": \"France\"}\n\n```\n\n"))
	assert.Equal(t, "type: graph", llmutils.TrimBackticks("```yaml\ntype: graph\n```"))
}

func Test_LooksLikeJSON(t *testing.T) {
	assert.True(t, llmutils.LooksLikeJSON([]byte(" {\"a\":1}")))
	assert.True(t, llmutils.LooksLikeJSON([]byte("\n[1,2]")))
	assert.False(t, llmutils.LooksLikeJSON([]byte("type: graph")))
	assert.False(t, llmutils.LooksLikeJSON(nil))
}

func Test_BackticksJSON(t *testing.T) {
	json := "{\"city\": \"Paris\", \"country\": \"France\"}"
	wrapped := llmutils.BackticksJSON(json)

	expected := "\n```json\n{\"city\": \"Paris\", \"country\": \"France\"}\n```\n"
	assert.Equal(t, expected, wrapped)
}

func Test_ToJSON(t *testing.T) {
	v := map[string]any{"b": 1, "a": "x"}
	assert.Equal(t, `{"a":"x","b":1}`, llmutils.ToJSON(v))
	assert.Equal(t, "{\n\t\"a\": \"x\",\n\t\"b\": 1\n}", llmutils.ToJSONIndent(v))
	assert.Equal(t, "a: x\nb: 1\n", llmutils.ToYAML(v))
	assert.Equal(t, "{\n\t\"a\": 1\n}", llmutils.JSONIndent(`{"a":1}`))
}

func Test_StringUpto(t *testing.T) {
	assert.Equal(t, "hello", llmutils.StringUpto("hello", 10))
	assert.Equal(t, "hel...", llmutils.StringUpto("hello", 3))
	assert.Equal(t, "hello", llmutils.StringUpto("hello", 0))
}
