package schema

import "time"

// CacheStatus represents the status of the event cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// RunStatus represents the status of the run history store.
type RunStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	FailedRuns    int              `json:"failed_runs"`
	LastRunID     int64            `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// RunSummary is the outcome of one repository update.
type RunSummary struct {
	Outcome   RunOutcome
	ErrorKind ErrorKind // Empty on success
	Message   string    // Error text on failure
	Events    int       // Events fetched from the source
	Items     int       // Tracked items reconstructed
	Days      int       // Day buckets persisted
	Labels    int       // Labels in the persisted label set
}

// RunRecord represents a row from the issuetrend_runs table.
type RunRecord struct {
	RunID      int64      `json:"run_id"`
	Repo       string     `json:"repo"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	DurationMs *int64     `json:"run_duration_ms,omitempty"`
	Outcome    *string    `json:"outcome,omitempty"`
	ErrorKind  *string    `json:"error_kind,omitempty"`
	Message    *string    `json:"message,omitempty"`
	Events     int32      `json:"events"`
	Items      int32      `json:"items"`
	Days       int32      `json:"days"`
	Labels     int32      `json:"labels"`
}

// UpdateResult is what the orchestrator reports for one repository.
type UpdateResult struct {
	Repo     RepoID
	Summary  RunSummary
	Duration time.Duration
	Err      error
}
