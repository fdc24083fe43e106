package encoding

import (
	"reflect"
	"strings"
)

// jsonTagName reports validation errors with the JSON field names,
// which are the names known to the agent.
func jsonTagName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}
