package tools

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/encoding"
	"github.com/effective-security/nexus/pkg/llmutils"
)

// Validator is implemented by inputs with checks not expressible by tags
type Validator interface {
	Validate() error
}

// ParseInput decodes the tool input, the empty input is treated as `{}`.
// Returns ErrFailedUnmarshalInput if the input is not a JSON object.
func ParseInput(input string, ret any) error {
	data := bytes.TrimSpace([]byte(input))
	if len(data) == 0 {
		data = []byte("{}")
	}
	data = llmutils.CleanJSON(data)
	if !llmutils.LooksLikeJSON(data) {
		return errors.WithStack(ErrFailedUnmarshalInput)
	}
	if err := encoding.JSON.Unmarshal(data, ret); err != nil {
		return errors.WithStack(ErrFailedUnmarshalInput)
	}
	return nil
}

// ValidateInput validates the parsed input by `validate` tags,
// and Validate method when implemented.
func ValidateInput(in any) error {
	if err := encoding.Validate(in); err != nil {
		return errors.Mark(err, ErrInvalidInput)
	}
	if v, ok := in.(Validator); ok {
		if err := v.Validate(); err != nil {
			return errors.Mark(err, ErrInvalidInput)
		}
	}
	return nil
}
