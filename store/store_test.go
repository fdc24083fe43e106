package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/effective-security/nexus/orchestration"
	"github.com/effective-security/nexus/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunStore(t *testing.T, s store.RunStore) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.Get(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.EqualError(t, s.Save(ctx, &store.Run{}), "run ID is required")

	for i, id := range []string{"run1", "run2", "run3"} {
		require.NoError(t, s.Save(ctx, &store.Run{
			ID:        id,
			Type:      "swarm",
			Status:    orchestration.StatusCompleted,
			Input:     "input " + id,
			Output:    "output " + id,
			Steps:     []orchestration.Step{{Agent: "a", Output: "x"}},
			Duration:  time.Second,
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		}))
	}

	run, err := s.Get(ctx, "run2")
	require.NoError(t, err)
	assert.Equal(t, "output run2", run.Output)
	assert.Equal(t, orchestration.StatusCompleted, run.Status)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, "a", run.Steps[0].Agent)
	assert.True(t, created.Add(time.Minute).Equal(run.CreatedAt))

	ids, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"run3", "run2", "run1"}, ids)

	ids, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"run3", "run2"}, ids)

	// replace
	run.Status = orchestration.StatusFailed
	run.Error = "boom"
	require.NoError(t, s.Save(ctx, run))
	run, err = s.Get(ctx, "run2")
	require.NoError(t, err)
	assert.Equal(t, orchestration.StatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)

	require.NoError(t, s.Delete(ctx, "run3"))
	require.NoError(t, s.Delete(ctx, "run3"))
	ids, err = s.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"run2", "run1"}, ids)
}

func TestMemoryStore(t *testing.T) {
	testRunStore(t, store.NewMemoryStore())
}
