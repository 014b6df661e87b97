package schema

import (
	"sort"
	"time"
)

// Event is a timestamped fact about one tracked item as reported by the event source.
type Event struct {
	Number    int       // Item number, unique within the repository
	Kind      EventKind // What happened
	ItemKind  ItemKind  // Only meaningful for EventCreated
	Label     string    // Only meaningful for EventLabeled and EventUnlabeled
	Timestamp time.Time // When it happened (UTC)
	Seq       int64     // Stable source sequence number used to break timestamp ties
}

// StateTransition records the item entering a state.
type StateTransition struct {
	At    time.Time
	State ItemState
}

// LabelTransition records a label being attached to or detached from an item.
type LabelTransition struct {
	At     time.Time
	Label  string
	Action LabelAction
}

// TrackedItem is the ordered life history of one issue or pull request.
// StateTransitions[0] is always the implicit open transition at CreatedAt.
type TrackedItem struct {
	Repo             RepoID
	Number           int
	Kind             ItemKind
	CreatedAt        time.Time
	StateTransitions []StateTransition
	LabelTransitions []LabelTransition
}

// StateAt returns the state of the last transition at or before t.
// Before the item existed it is reported as closed.
func (it *TrackedItem) StateAt(t time.Time) ItemState {
	state := Closed
	for _, tr := range it.StateTransitions {
		if tr.At.After(t) {
			break
		}
		state = tr.State
	}
	return state
}

// IsOpenAt reports whether the item is open at t.
func (it *TrackedItem) IsOpenAt(t time.Time) bool {
	return it.StateAt(t) == Open
}

// LabelsAt returns the sorted labels whose last transition at or before t is an addition.
func (it *TrackedItem) LabelsAt(t time.Time) []string {
	held := make(map[string]bool)
	for _, tr := range it.LabelTransitions {
		if tr.At.After(t) {
			break
		}
		held[tr.Label] = tr.Action == LabelAdded
	}
	labels := make([]string, 0, len(held))
	for name, on := range held {
		if on {
			labels = append(labels, name)
		}
	}
	sort.Strings(labels)
	return labels
}

// EverLabeled returns every label the item was given at least once.
func (it *TrackedItem) EverLabeled() []string {
	seen := make(map[string]struct{})
	for _, tr := range it.LabelTransitions {
		if tr.Action == LabelAdded {
			seen[tr.Label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for name := range seen {
		labels = append(labels, name)
	}
	sort.Strings(labels)
	return labels
}
