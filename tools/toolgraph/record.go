package toolgraph

import (
	"fmt"
)

// Record is a row returned by a query, keyed by the RETURN aliases
type Record map[string]any

// String returns the value as string, empty for null
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer value, zero for null
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Bool returns the value as bool
func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes"
	default:
		return false
	}
}

// Strings returns the list value, dropping nulls and empty strings
func (r Record) Strings(key string) []string {
	list, _ := r[key].([]any)
	res := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			res = append(res, s)
		}
	}
	return res
}

// Records returns the list of maps value, as produced by map projections
func (r Record) Records(key string) []Record {
	list, _ := r[key].([]any)
	res := make([]Record, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok && m["name"] != nil {
			res = append(res, Record(m))
		}
	}
	return res
}
