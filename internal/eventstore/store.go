// Package eventstore records pipeline run events in SQLite and projects them into
// per-branch run history.
package eventstore

import (
	"context"
	"time"
)

// RunRef identifies one recorded run.
type RunRef struct {
	RunID     string    `json:"run_id"`
	Branch    string    `json:"branch"`
	StartedAt time.Time `json:"started_at"`
}

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, runID, branch, eventType string, payload []byte, metadata map[string]string) error

	// GetByRunID retrieves all events for a specific run.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// ListRuns returns runs for branch, newest first. An empty branch lists all
	// branches. A limit of zero or less returns every run.
	ListRuns(ctx context.Context, branch string, limit int) ([]RunRef, error)

	// PruneBranch deletes the events of all but the keep newest runs of branch
	// and reports how many runs were removed.
	PruneBranch(ctx context.Context, branch string, keep int) (int, error)

	// Close closes the store and releases resources.
	Close() error
}
