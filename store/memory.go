package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[string]*Run
}

// NewMemoryStore returns the in-process store
func NewMemoryStore() RunStore {
	return &inMemory{}
}

func (m *inMemory) Save(_ context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run ID is required")
	}
	cp := *run
	cp.Steps = slices.Clone(run.Steps)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string]*Run)
	}
	m.storage[run.ID] = &cp
	return nil
}

func (m *inMemory) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run := m.storage[id]
	if run == nil {
		return nil, errors.Wrapf(ErrNotFound, "run %s", id)
	}
	cp := *run
	cp.Steps = slices.Clone(run.Steps)
	return &cp, nil
}

func (m *inMemory) List(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.storage))
	for _, r := range m.storage {
		runs = append(runs, r)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids, nil
}

func (m *inMemory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, id)
	return nil
}
