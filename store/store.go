// Package store keeps the history of orchestration runs.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/orchestration"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/nexus", "store")

// ErrNotFound is returned when the run does not exist
var ErrNotFound = errors.New("run not found")

// Run is a completed or failed orchestration run
type Run struct {
	ID        string               `json:"id"`
	Type      string               `json:"type"`
	Status    orchestration.Status `json:"status"`
	Input     string               `json:"input"`
	Output    string               `json:"output"`
	Error     string               `json:"error,omitempty"`
	Steps     []orchestration.Step `json:"steps,omitempty"`
	Duration  time.Duration        `json:"duration"`
	CreatedAt time.Time            `json:"created_at"`
}

// RunStore persists the runs
type RunStore interface {
	// Save creates or replaces the run
	Save(ctx context.Context, run *Run) error
	// Get returns the run, or ErrNotFound
	Get(ctx context.Context, id string) (*Run, error)
	// List returns IDs of the latest runs, most recent first; limit <= 0 returns all
	List(ctx context.Context, limit int) ([]string, error)
	// Delete removes the run
	Delete(ctx context.Context, id string) error
}
