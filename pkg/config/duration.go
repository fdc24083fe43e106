package config

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Duration is time.Duration that supports "10m" form in JSON and YAML,
// as well as a number of seconds.
type Duration time.Duration

// Std returns time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.WithStack(err)
	}
	return d.set(v)
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return errors.WithStack(err)
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(val * float64(time.Second)))
	case int:
		*d = Duration(time.Duration(val) * time.Second)
	case string:
		if val == "" {
			*d = 0
			return nil
		}
		dur, err := time.ParseDuration(val)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", val)
		}
		*d = Duration(dur)
	default:
		return errors.Newf("invalid duration type %T", v)
	}
	return nil
}
