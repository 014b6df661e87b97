package core

import (
	"bytes"
	"fmt"
	"maps"

	"github.com/goccy/go-json"
	"github.com/huangsam/issuetrend/schema"
)

// canonicalBucket encodes a bucket the way it is persisted. Map keys are emitted sorted.
func canonicalBucket(b schema.DayBucket) ([]byte, error) {
	b.IssueLabels = maps.Clone(b.IssueLabels)
	b.PRLabels = maps.Clone(b.PRLabels)
	b.Normalize()
	return json.Marshal(b)
}

// Merge combines the stored document with a full recomputation.
// Stored days before today are immutable and must recompute identically; otherwise
// the merge fails with ErrConsistency naming the first differing day. Today's entry
// is replaced, and days never persisted before are filled in from the recomputation.
func Merge(prev *schema.PersistedTimeline, fresh schema.PersistedTimeline, today string) (schema.PersistedTimeline, error) {
	if _, err := schema.ParseDay(today); err != nil {
		return schema.PersistedTimeline{}, fmt.Errorf("merge: %w", err)
	}
	if fresh.Labels == nil {
		fresh.Labels = []string{}
	}
	if fresh.Timeline == nil {
		fresh.Timeline = []schema.DayBucket{}
	}
	if prev == nil {
		return fresh, nil
	}

	if last := prev.LastDay(); last > today {
		return schema.PersistedTimeline{}, fmt.Errorf("stored timeline ends on %s, after today %s: %w", last, today, schema.ErrConsistency)
	}

	freshByDay := make(map[string]schema.DayBucket, len(fresh.Timeline))
	for _, b := range fresh.Timeline {
		freshByDay[b.Day] = b
	}

	var prefix []schema.DayBucket
	for _, old := range prev.Timeline {
		if old.Day >= today {
			break
		}
		recomputed, ok := freshByDay[old.Day]
		if !ok {
			return schema.PersistedTimeline{}, fmt.Errorf("day %s is stored but missing from recomputation: %w", old.Day, schema.ErrConsistency)
		}
		oldBytes, err := canonicalBucket(old)
		if err != nil {
			return schema.PersistedTimeline{}, fmt.Errorf("encode stored day %s: %w", old.Day, err)
		}
		newBytes, err := canonicalBucket(recomputed)
		if err != nil {
			return schema.PersistedTimeline{}, fmt.Errorf("encode recomputed day %s: %w", old.Day, err)
		}
		if !bytes.Equal(oldBytes, newBytes) {
			return schema.PersistedTimeline{}, fmt.Errorf("day %s changed: stored %s, recomputed %s: %w", old.Day, oldBytes, newBytes, schema.ErrConsistency)
		}
		prefix = append(prefix, old)
	}

	merged := make([]schema.DayBucket, 0, len(fresh.Timeline))
	if len(prefix) == 0 {
		for _, b := range fresh.Timeline {
			if b.Day <= today {
				merged = append(merged, b)
			}
		}
	} else {
		first, last := prefix[0].Day, prefix[len(prefix)-1].Day
		for _, b := range fresh.Timeline {
			if b.Day < first {
				merged = append(merged, b)
			}
		}
		merged = append(merged, prefix...)
		for _, b := range fresh.Timeline {
			if b.Day > last && b.Day <= today {
				merged = append(merged, b)
			}
		}
	}

	return schema.PersistedTimeline{
		Labels:   schema.UnionLabels(prev.Labels, fresh.Labels),
		Timeline: merged,
	}, nil
}
