// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/issuetrend/schema"
)

// EventSource fetches the complete event history of a repository.
// This allows the update pipeline to be tested without talking to GitHub.
type EventSource interface {
	// FetchEvents returns every creation, close, reopen and label event of the repository.
	// The order of the returned events is unspecified.
	FetchEvents(ctx context.Context, repo schema.RepoID) ([]schema.Event, error)
}

// SnapshotStore persists one timeline document per repository.
type SnapshotStore interface {
	// Load returns the stored document, or nil when none exists yet.
	Load(repo schema.RepoID) (*schema.PersistedTimeline, error)

	// Save atomically replaces the stored document.
	Save(repo schema.RepoID, doc schema.PersistedTimeline) error

	// Quarantine moves an unreadable document aside and returns its new path.
	Quarantine(repo schema.RepoID) (string, error)

	// List returns every repository with a stored document.
	List() ([]schema.RepoID, error)
}

// StoreManager defines the interface for managing the database stores.
// This allows the store layer to be mocked for testing.
type StoreManager interface {
	GetEventCache() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore defines the interface for recording repository update runs.
type RunStore interface {
	// BeginRun creates a new run row and returns its unique ID
	BeginRun(repo schema.RepoID, startTime time.Time) (int64, error)

	// EndRun records the outcome of the run
	EndRun(runID int64, endTime time.Time, summary schema.RunSummary) error

	// ListRuns returns the most recent runs, newest first
	ListRuns(limit int) ([]schema.RunRecord, error)

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// Close closes the underlying connection
	Close() error
}
