package tools

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/pkg/metricskey"
	"github.com/effective-security/xlog"
)

// Registry holds the tools available to agents
type Registry struct {
	lock      sync.RWMutex
	tools     map[string]ITool
	callbacks []Callback
}

// NewRegistry returns empty registry
func NewRegistry(callbacks ...Callback) *Registry {
	return &Registry{
		tools:     make(map[string]ITool),
		callbacks: callbacks,
	}
}

// Register adds the tools, the names are case-insensitive and must be unique
func (r *Registry) Register(list ...ITool) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, t := range list {
		if t == nil {
			continue
		}
		name := t.Name()
		if name == "" {
			return errors.New("tool name is empty")
		}
		key := strings.ToLower(name)
		if _, ok := r.tools[key]; ok {
			return errors.Newf("tool already registered: %s", name)
		}
		r.tools[key] = t
	}
	return nil
}

// AddCallback adds the callback invoked on every Call
func (r *Registry) AddCallback(cb Callback) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Get returns the tool by name
func (r *Registry) Get(name string) (ITool, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.tools[strings.ToLower(name)]
	return t, ok
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.tools)
}

// Names returns the sorted names of the tools
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, t := range list {
		names[i] = t.Name()
	}
	return names
}

// List returns the tools sorted by name
func (r *Registry) List() []ITool {
	r.lock.RLock()
	list := make([]ITool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	r.lock.RUnlock()

	slices.SortFunc(list, func(a, b ITool) int {
		return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
	})
	return list
}

// Subset returns the tools by names, unknown names are returned as error
func (r *Registry) Subset(names ...string) ([]ITool, error) {
	list := make([]ITool, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			return nil, errors.Newf("tool not found: %s", name)
		}
		list = append(list, t)
	}
	return list, nil
}

// Describe returns markdown list of the tools
func (r *Registry) Describe() string {
	var b bytes.Buffer
	for _, t := range r.List() {
		fmt.Fprintf(&b, "- **%s**: %s\n", t.Name(), t.Description())
	}
	return b.String()
}

// Call executes the tool by name and returns the envelope.
// Unknown tool and unparsable input are returned as error envelope,
// the error is returned along with the envelope.
func (r *Registry) Call(ctx context.Context, name, input string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING, "tool", name, "status", "tool_not_found")
		err := NotFound("tool not found: %s", name)
		return Failure(name, err), err
	}

	r.lock.RLock()
	callbacks := slices.Clone(r.callbacks)
	r.lock.RUnlock()

	for _, cb := range callbacks {
		cb.OnToolStart(ctx, t, input)
	}

	out, err := t.Call(ctx, input)
	if err != nil {
		for _, cb := range callbacks {
			cb.OnToolError(ctx, t, input, err)
		}
		return Failure(t.Name(), err), err
	}

	for _, cb := range callbacks {
		cb.OnToolEnd(ctx, t, input, out)
	}
	return out, nil
}
