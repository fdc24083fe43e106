package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/effective-security/nexus/pkg/schema"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Search represents a search request with various parameters.
type Search struct {
	Topic string    `json:"topic,omitempty" jsonschema:"title=Topic,description=Topic of the search\\, with coma.,example=golang"`
	Query string    `json:"query" jsonschema:"title=Query,description=Query to search for relevant content,example=what is golang"`
	Type  string    `json:"type"  jsonschema:"title=Type,description=Type of search,default=web,enum=web,enum=image,enum=video"`
	Args  []*KVPair `json:"args,omitempty" jsonschema:"title=Args,description=Arguments for the search"`
}

// KVPair represents a key-value pair.
type KVPair struct {
	Key   string `json:"key" jsonschema:"title=Key,description=Key of the pair"`
	Value string `json:"value" jsonschema:"title=Value,description=Value of the pair"`
}

func TestSchema(t *testing.T) {
	t.Parallel()

	t.Run("Search", func(t *testing.T) {
		t.Parallel()
		s, err := schema.New(reflect.TypeOf(Search{}))
		require.NoError(t, err)

		exp := `{
	"properties": {
		"topic": {
			"type": "string",
			"title": "Topic",
			"description": "Topic of the search, with coma.",
			"examples": [
				"golang"
			]
		},
		"query": {
			"type": "string",
			"title": "Query",
			"description": "Query to search for relevant content",
			"examples": [
				"what is golang"
			]
		},
		"type": {
			"type": "string",
			"enum": [
				"web",
				"image",
				"video"
			],
			"title": "Type",
			"description": "Type of search",
			"default": "web"
		},
		"args": {
			"items": {
				"properties": {
					"key": {
						"type": "string",
						"title": "Key",
						"description": "Key of the pair"
					},
					"value": {
						"type": "string",
						"title": "Value",
						"description": "Value of the pair"
					}
				},
				"type": "object",
				"required": [
					"key",
					"value"
				]
			},
			"type": "array",
			"title": "Args",
			"description": "Arguments for the search"
		}
	},
	"type": "object",
	"required": [
		"query",
		"type"
	]
}`
		assert.Equal(t, exp, s.String())
		assert.Equal(t, exp, llmutils.ToJSONIndent(s.Parameters))

		// cached, and pointer types resolve to the same schema
		s2, err := schema.New(reflect.TypeOf(&Search{}))
		require.NoError(t, err)
		assert.Same(t, s, s2)
	})

	t.Run("Weather", func(t *testing.T) {
		t.Parallel()

		type weatherRequest struct {
			Location string `json:"location" jsonschema:"description=City name"`
			Unit     string `json:"unit" jsonschema:"description=Unit of measurement,enum=celsius,enum=fahrenheit"`
		}

		s, err := schema.For[weatherRequest]()
		require.NoError(t, err)
		exp := `{
	"properties": {
		"location": {
			"type": "string",
			"description": "City name"
		},
		"unit": {
			"type": "string",
			"enum": [
				"celsius",
				"fahrenheit"
			],
			"description": "Unit of measurement"
		}
	},
	"type": "object",
	"required": [
		"location",
		"unit"
	]
}`
		assert.Equal(t, exp, s.String())

		var sc jsonschema.Schema
		err = json.Unmarshal([]byte(exp), &sc)
		require.NoError(t, err)
		assert.Equal(t, 2, sc.Properties.Len())

		m := s.Map()
		assert.Equal(t, "object", m["type"])
		assert.Len(t, m["properties"], 2)
	})

	t.Run("NotStruct", func(t *testing.T) {
		t.Parallel()
		_, err := schema.New(reflect.TypeOf(""))
		assert.EqualError(t, err, "schema: unsupported type string, expected struct")
		_, err = schema.New(nil)
		assert.EqualError(t, err, "schema: nil type")
	})
}

func TestSchemaFromAny(t *testing.T) {
	t.Parallel()

	sc, err := schema.FromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type": "string",
			},
		},
		"required": []string{"query"},
	})
	require.NoError(t, err)

	exp := `{
	"properties": {
		"query": {
			"type": "string"
		}
	},
	"type": "object",
	"required": [
		"query"
	]
}`
	assert.Equal(t, exp, llmutils.ToJSONIndent(sc))
}
