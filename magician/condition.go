package magician

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/orchestration"
)

// ParseCondition returns the edge condition evaluated over the output of the source node,
// nil for the unconditional edge
func ParseCondition(from, expr string) (orchestration.Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.EqualFold(expr, "always") {
		return nil, nil
	}

	op, arg, ok := strings.Cut(expr, ":")
	if !ok {
		return nil, errors.Newf("edge from %s: unsupported condition %q", from, expr)
	}
	arg = strings.TrimSpace(arg)
	lower := strings.ToLower(arg)

	output := func(s *orchestration.GraphState) string {
		return strings.ToLower(s.Output(from))
	}

	switch strings.ToLower(strings.TrimSpace(op)) {
	case "contains":
		return func(s *orchestration.GraphState) bool {
			return strings.Contains(output(s), lower)
		}, nil
	case "not_contains":
		return func(s *orchestration.GraphState) bool {
			return !strings.Contains(output(s), lower)
		}, nil
	case "equals":
		return func(s *orchestration.GraphState) bool {
			return strings.TrimSpace(output(s)) == lower
		}, nil
	case "matches":
		re, err := regexp.Compile(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "edge from %s: invalid condition regexp", from)
		}
		return func(s *orchestration.GraphState) bool {
			return re.MatchString(s.Output(from))
		}, nil
	default:
		return nil, errors.Newf("edge from %s: unsupported condition %q", from, expr)
	}
}
