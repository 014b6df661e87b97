package schema

import "errors"

// Failure classes of a repository update. Callers wrap them with context using %w.
var (
	// ErrSourceUnavailable covers network, auth and rate-limit failures of the event source.
	ErrSourceUnavailable = errors.New("event source unavailable")

	// ErrIncompleteHistory means an event refers to an item with no preceding creation event.
	ErrIncompleteHistory = errors.New("incomplete history")

	// ErrConsistency means an immutable past day recomputed differently from its stored value.
	ErrConsistency = errors.New("consistency violation")

	// ErrDataCorruption means the persisted document could not be read back.
	ErrDataCorruption = errors.New("data corruption")
)

// ClassifyError maps a wrapped error onto its ErrorKind. Nil yields "".
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return SourceUnavailableKind
	case errors.Is(err, ErrIncompleteHistory):
		return IncompleteHistoryKind
	case errors.Is(err, ErrConsistency):
		return ConsistencyKind
	case errors.Is(err, ErrDataCorruption):
		return DataCorruptionKind
	default:
		return InternalKind
	}
}
