package core

import (
	"testing"

	"github.com/huangsam/issuetrend/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bucket(day string, issues, prs int, issueLabels map[string]int) schema.DayBucket {
	b := schema.DayBucket{Day: day, OpenIssues: issues, OpenPRs: prs, IssueLabels: issueLabels, PRLabels: map[string]int{}}
	if b.IssueLabels == nil {
		b.IssueLabels = map[string]int{}
	}
	return b
}

func TestMergeWithoutPrevious(t *testing.T) {
	fresh := schema.PersistedTimeline{
		Labels:   []string{"bug"},
		Timeline: []schema.DayBucket{bucket("2024-01-01", 1, 0, nil), bucket("2024-01-02", 2, 0, nil)},
	}
	merged, err := Merge(nil, fresh, "2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, fresh, merged)

	empty, err := Merge(nil, schema.PersistedTimeline{}, "2024-01-02")
	require.NoError(t, err)
	assert.NotNil(t, empty.Labels)
	assert.NotNil(t, empty.Timeline)
}

func TestMergeKeepsPrefixAndReplacesToday(t *testing.T) {
	prev := &schema.PersistedTimeline{
		Labels: []string{"old"},
		Timeline: []schema.DayBucket{
			bucket("2024-01-01", 1, 0, map[string]int{"bug": 1}),
			bucket("2024-01-02", 2, 1, nil),
			bucket("2024-01-03", 5, 5, nil), // Yesterday's "today", computed mid-day
		},
	}
	fresh := schema.PersistedTimeline{
		Labels: []string{"bug"},
		Timeline: []schema.DayBucket{
			bucket("2024-01-01", 1, 0, map[string]int{"bug": 1}),
			bucket("2024-01-02", 2, 1, nil),
			bucket("2024-01-03", 5, 5, nil),
			bucket("2024-01-04", 3, 1, nil),
			bucket("2024-01-05", 4, 1, nil),
		},
	}

	merged, err := Merge(prev, fresh, "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, []string{"bug", "old"}, merged.Labels)
	require.Len(t, merged.Timeline, 5)
	assert.Equal(t, "2024-01-04", merged.Timeline[3].Day, "gap days are filled in")
	assert.Equal(t, 4, merged.Timeline[4].OpenIssues)
	require.NoError(t, merged.Validate())
}

func TestMergeSameDayRerun(t *testing.T) {
	prev := &schema.PersistedTimeline{
		Timeline: []schema.DayBucket{bucket("2024-01-01", 1, 0, nil), bucket("2024-01-02", 1, 0, nil)},
	}
	fresh := schema.PersistedTimeline{
		Timeline: []schema.DayBucket{bucket("2024-01-01", 1, 0, nil), bucket("2024-01-02", 3, 2, nil)},
	}
	merged, err := Merge(prev, fresh, "2024-01-02")
	require.NoError(t, err)
	require.Len(t, merged.Timeline, 2)
	assert.Equal(t, 3, merged.Timeline[1].OpenIssues, "today is always recomputed")
}

func TestMergeNilAndEmptyMapsAreEqual(t *testing.T) {
	prev := &schema.PersistedTimeline{
		Timeline: []schema.DayBucket{{Day: "2024-01-01", OpenIssues: 1}},
	}
	fresh := schema.PersistedTimeline{
		Timeline: []schema.DayBucket{bucket("2024-01-01", 1, 0, nil), bucket("2024-01-02", 1, 0, nil)},
	}
	_, err := Merge(prev, fresh, "2024-01-02")
	assert.NoError(t, err)
}

func TestMergePrependsEarlierDays(t *testing.T) {
	// A newly discovered older item moved the first tracked day back
	prev := &schema.PersistedTimeline{
		Timeline: []schema.DayBucket{bucket("2024-01-03", 1, 0, nil)},
	}
	fresh := schema.PersistedTimeline{
		Timeline: []schema.DayBucket{
			bucket("2024-01-02", 0, 1, nil),
			bucket("2024-01-03", 1, 0, nil),
			bucket("2024-01-04", 1, 0, nil),
		},
	}
	merged, err := Merge(prev, fresh, "2024-01-04")
	require.NoError(t, err)
	require.Len(t, merged.Timeline, 3)
	assert.Equal(t, "2024-01-02", merged.Timeline[0].Day)
	require.NoError(t, merged.Validate())
}

func TestMergeConsistencyErrors(t *testing.T) {
	tests := []struct {
		name    string
		prev    []schema.DayBucket
		fresh   []schema.DayBucket
		today   string
		message string
	}{
		{
			name:    "past day changed",
			prev:    []schema.DayBucket{bucket("2024-01-01", 1, 0, nil), bucket("2024-01-02", 1, 0, nil)},
			fresh:   []schema.DayBucket{bucket("2024-01-01", 2, 0, nil), bucket("2024-01-02", 2, 0, nil), bucket("2024-01-03", 2, 0, nil)},
			today:   "2024-01-03",
			message: "day 2024-01-01 changed",
		},
		{
			name:    "past label count changed",
			prev:    []schema.DayBucket{bucket("2024-01-01", 1, 0, map[string]int{"bug": 1})},
			fresh:   []schema.DayBucket{bucket("2024-01-01", 1, 0, map[string]int{"ui": 1}), bucket("2024-01-02", 1, 0, nil)},
			today:   "2024-01-02",
			message: "day 2024-01-01 changed",
		},
		{
			name:    "stored day missing from recomputation",
			prev:    []schema.DayBucket{bucket("2023-12-31", 0, 0, nil), bucket("2024-01-01", 1, 0, nil)},
			fresh:   []schema.DayBucket{bucket("2024-01-01", 1, 0, nil), bucket("2024-01-02", 1, 0, nil)},
			today:   "2024-01-02",
			message: "day 2023-12-31 is stored but missing",
		},
		{
			name:    "stored timeline ends in the future",
			prev:    []schema.DayBucket{bucket("2024-01-05", 1, 0, nil)},
			fresh:   []schema.DayBucket{bucket("2024-01-04", 1, 0, nil)},
			today:   "2024-01-04",
			message: "after today",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := &schema.PersistedTimeline{Timeline: tt.prev}
			_, err := Merge(prev, schema.PersistedTimeline{Timeline: tt.fresh}, tt.today)
			require.Error(t, err)
			assert.ErrorIs(t, err, schema.ErrConsistency)
			assert.ErrorContains(t, err, tt.message)
		})
	}
}

func TestMergeInvalidToday(t *testing.T) {
	_, err := Merge(nil, schema.PersistedTimeline{}, "yesterday")
	assert.Error(t, err)
}

func TestMergeAfterReconstructionIsStable(t *testing.T) {
	events := []schema.Event{
		created(1, schema.IssueKind, "2024-01-01T10:00:00Z"),
		labeled(1, "bug", "2024-01-01T12:00:00Z"),
		created(2, schema.PullRequestKind, "2024-01-02T10:00:00Z"),
	}
	items := mustItems(t, events...)
	day2 := schema.PersistedTimeline{Labels: CollectLabels(items), Timeline: Reconstruct(items, ts("2024-01-02T18:00:00Z"))}
	stored, err := Merge(nil, day2, "2024-01-02")
	require.NoError(t, err)

	// The next day brings a close; past days must recompute identically
	events = append(events, closed(2, "2024-01-03T08:00:00Z"))
	items = mustItems(t, events...)
	day3 := schema.PersistedTimeline{Labels: CollectLabels(items), Timeline: Reconstruct(items, ts("2024-01-03T18:00:00Z"))}
	merged, err := Merge(&stored, day3, "2024-01-03")
	require.NoError(t, err)

	require.Len(t, merged.Timeline, 3)
	assert.Equal(t, stored.Timeline, merged.Timeline[:2])
	assert.Equal(t, 0, merged.Timeline[2].OpenPRs)
}
