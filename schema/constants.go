package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the event cache and run history.
	DatabaseBackend string

	// ItemKind tells issues and pull requests apart.
	ItemKind string

	// ItemState is the open/closed status of a tracked item.
	ItemState string

	// LabelAction is the direction of a label transition.
	LabelAction string

	// EventKind is the type of a repository event.
	EventKind string

	// ErrorKind classifies a failed repository update.
	ErrorKind string

	// RunOutcome is the final status of one repository update.
	RunOutcome string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Item kinds.
const (
	IssueKind       ItemKind = "issue"
	PullRequestKind ItemKind = "pull_request"
)

// Item states.
const (
	Open   ItemState = "open"
	Closed ItemState = "closed"
)

// Label actions.
const (
	LabelAdded   LabelAction = "added"
	LabelRemoved LabelAction = "removed"
)

// Event kinds.
const (
	EventCreated   EventKind = "created"
	EventClosed    EventKind = "closed"
	EventReopened  EventKind = "reopened"
	EventLabeled   EventKind = "labeled"
	EventUnlabeled EventKind = "unlabeled"
)

// Error kinds recorded for failed updates.
const (
	SourceUnavailableKind ErrorKind = "source_unavailable"
	IncompleteHistoryKind ErrorKind = "incomplete_history"
	ConsistencyKind       ErrorKind = "consistency"
	DataCorruptionKind    ErrorKind = "data_corruption"
	InternalKind          ErrorKind = "internal"
)

// Run outcomes.
const (
	RunSucceeded RunOutcome = "succeeded"
	RunFailed    RunOutcome = "failed"
)

// DayLayout is the ISO 8601 calendar date layout used for day buckets.
const DayLayout = "2006-01-02"

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// eventPriority orders unsequenced events sharing a timestamp: creation always comes first.
var eventPriority = map[EventKind]int{
	EventCreated:   0,
	EventReopened:  1,
	EventLabeled:   2,
	EventUnlabeled: 3,
	EventClosed:    4,
}

// Priority returns the tie-break rank of the event kind when no source sequence is known.
func (k EventKind) Priority() int {
	if p, ok := eventPriority[k]; ok {
		return p
	}
	return len(eventPriority)
}
