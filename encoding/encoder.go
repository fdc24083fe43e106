// Package encoding provides the encoders of structured documents exchanged with
// LLM agents: lenient JSON for tool inputs, and JSON, YAML and TOML for reports.
package encoding

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/llmutils"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Encoder marshals and unmarshals documents
type Encoder interface {
	Marshal(v any) ([]byte, error)
	Unmarshal([]byte, any) error
}

type Mode = string

const (
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
	ModeTOML Mode = "toml"
)

// ForMode returns the encoder for the mode
func ForMode(mode Mode) (Encoder, error) {
	switch strings.ToLower(mode) {
	case ModeJSON:
		return JSON, nil
	case ModeYAML, "yml":
		return YAML, nil
	case ModeTOML:
		return TOML, nil
	default:
		return nil, errors.Newf("unsupported encoding: %s", mode)
	}
}

var (
	// JSON is lenient JSON encoder: Unmarshal accepts the document
	// wrapped in prose or backticks, and relaxed JSON produced by LLM.
	JSON Encoder = jsonEncoder{}
	// YAML encoder
	YAML Encoder = yamlEncoder{}
	// TOML encoder
	TOML Encoder = tomlEncoder{}
)

type jsonEncoder struct{}

func (jsonEncoder) Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func (jsonEncoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.CleanJSON(bs)
	return ljson.Unmarshal(data, ret)
}

type yamlEncoder struct{}

func (yamlEncoder) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return b.Bytes(), nil
}

func (yamlEncoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.BytesTrimBackticks(bs)
	return yaml.Unmarshal(data, ret)
}

type tomlEncoder struct{}

func (tomlEncoder) Marshal(v any) ([]byte, error) {
	return toml.Marshal(v)
}

func (tomlEncoder) Unmarshal(bs []byte, ret any) error {
	data := llmutils.BytesTrimBackticks(bs)
	return toml.Unmarshal(data, ret)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate validates the struct by `validate` tags
func Validate(req any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonTagName)
	})
	return validate.Struct(req)
}
