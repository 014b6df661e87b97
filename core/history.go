package core

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/huangsam/issuetrend/schema"
)

// compareEvents orders events by timestamp, then creation first, then source sequence.
// Events without a sequence, such as a close synthesized from closed_at, follow the
// sequenced ones at the same instant and fall back to kind priority among themselves.
// Number, kind and label make the order total so page order never leaks into the result.
func compareEvents(a, b schema.Event) int {
	return cmp.Or(
		a.Timestamp.Compare(b.Timestamp),
		compareBool(a.Kind != schema.EventCreated, b.Kind != schema.EventCreated),
		compareBool(a.Seq == 0, b.Seq == 0),
		cmp.Compare(a.Seq, b.Seq),
		cmp.Compare(a.Kind.Priority(), b.Kind.Priority()),
		cmp.Compare(a.Number, b.Number),
		cmp.Compare(a.Kind, b.Kind),
		cmp.Compare(a.Label, b.Label),
	)
}

// BuildItems groups the events of a repository into per-item life histories.
// Events may arrive in any order. An event for an item with no earlier creation
// event, or a second creation event, fails the whole repository.
func BuildItems(repo schema.RepoID, events []schema.Event) (map[int]*schema.TrackedItem, error) {
	sorted := slices.Clone(events)
	for i := range sorted {
		sorted[i].Timestamp = sorted[i].Timestamp.UTC()
	}
	slices.SortFunc(sorted, compareEvents)

	items := make(map[int]*schema.TrackedItem)
	for _, ev := range sorted {
		item, exists := items[ev.Number]

		if ev.Kind == schema.EventCreated {
			if exists {
				return nil, fmt.Errorf("%s#%d: second creation event at %s: %w",
					repo, ev.Number, ev.Timestamp.Format(time.RFC3339), schema.ErrIncompleteHistory)
			}
			kind, err := normalizeKind(ev.ItemKind)
			if err != nil {
				return nil, fmt.Errorf("%s#%d: %w", repo, ev.Number, err)
			}
			items[ev.Number] = &schema.TrackedItem{
				Repo:             repo,
				Number:           ev.Number,
				Kind:             kind,
				CreatedAt:        ev.Timestamp,
				StateTransitions: []schema.StateTransition{{At: ev.Timestamp, State: schema.Open}},
			}
			continue
		}

		if !exists {
			return nil, fmt.Errorf("%s#%d: %s event at %s precedes any creation event: %w",
				repo, ev.Number, ev.Kind, ev.Timestamp.Format(time.RFC3339), schema.ErrIncompleteHistory)
		}

		switch ev.Kind {
		case schema.EventClosed:
			item.StateTransitions = append(item.StateTransitions, schema.StateTransition{At: ev.Timestamp, State: schema.Closed})
		case schema.EventReopened:
			item.StateTransitions = append(item.StateTransitions, schema.StateTransition{At: ev.Timestamp, State: schema.Open})
		case schema.EventLabeled, schema.EventUnlabeled:
			if ev.Label == "" {
				continue
			}
			action := schema.LabelAdded
			if ev.Kind == schema.EventUnlabeled {
				action = schema.LabelRemoved
			}
			item.LabelTransitions = append(item.LabelTransitions, schema.LabelTransition{At: ev.Timestamp, Label: ev.Label, Action: action})
		}
	}
	return items, nil
}

// normalizeKind validates the item kind of a creation event.
func normalizeKind(kind schema.ItemKind) (schema.ItemKind, error) {
	switch kind {
	case schema.IssueKind, schema.PullRequestKind:
		return kind, nil
	case "":
		return schema.IssueKind, nil
	default:
		return "", fmt.Errorf("unknown item kind %q", kind)
	}
}
