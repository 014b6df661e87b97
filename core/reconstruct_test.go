package core

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/huangsam/issuetrend/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustItems(t *testing.T, events ...schema.Event) map[int]*schema.TrackedItem {
	t.Helper()
	items, err := BuildItems(testRepo, events)
	require.NoError(t, err)
	return items
}

func bucketByDay(timeline []schema.DayBucket) map[string]schema.DayBucket {
	out := make(map[string]schema.DayBucket, len(timeline))
	for _, b := range timeline {
		out[b.Day] = b
	}
	return out
}

func TestReconstructScenarios(t *testing.T) {
	t.Run("labeled issue closed on the third day", func(t *testing.T) {
		items := mustItems(t,
			created(1, schema.IssueKind, "2024-01-01T10:00:00Z"),
			labeled(1, "bug", "2024-01-01T12:00:00Z"),
			closed(1, "2024-01-03T09:00:00Z"),
		)
		timeline := Reconstruct(items, ts("2024-01-04T08:00:00Z"))
		require.Len(t, timeline, 4)

		days := bucketByDay(timeline)
		for _, day := range []string{"2024-01-01", "2024-01-02"} {
			assert.Equal(t, 1, days[day].OpenIssues, day)
			assert.Equal(t, map[string]int{"bug": 1}, days[day].IssueLabels, day)
		}
		assert.Equal(t, 0, days["2024-01-03"].OpenIssues)
		assert.Equal(t, map[string]int{}, days["2024-01-03"].IssueLabels, "zero counts are omitted")
		assert.Equal(t, 0, days["2024-01-04"].OpenIssues)
	})

	t.Run("created and closed on the same day", func(t *testing.T) {
		items := mustItems(t,
			created(2, schema.IssueKind, "2024-02-01T03:00:00Z"),
			closed(2, "2024-02-01T21:00:00Z"),
		)
		timeline := Reconstruct(items, ts("2024-02-02T12:00:00Z"))
		require.Len(t, timeline, 2)
		assert.Equal(t, "2024-02-01", timeline[0].Day)
		assert.Equal(t, 1, timeline[0].OpenIssues)
		assert.Equal(t, "2024-02-02", timeline[1].Day)
		assert.Equal(t, 0, timeline[1].OpenIssues)
	})

	t.Run("label added and removed within a day", func(t *testing.T) {
		items := mustItems(t,
			created(3, schema.IssueKind, "2024-02-20T00:00:00Z"),
			labeled(3, "bug", "2024-02-21T00:00:00Z"),
			unlabeled(3, "bug", "2024-02-22T00:00:00Z"),
			labeled(3, "bug", "2024-03-01T08:00:00Z"),
			unlabeled(3, "bug", "2024-03-01T17:00:00Z"),
		)
		timeline := Reconstruct(items, ts("2024-03-01T23:00:00Z"))
		days := bucketByDay(timeline)

		assert.Equal(t, map[string]int{"bug": 1}, days["2024-02-21"].IssueLabels)
		assert.NotContains(t, days["2024-03-01"].IssueLabels, "bug")
		assert.Equal(t, 1, days["2024-03-01"].OpenIssues)
		assert.Equal(t, []string{"bug"}, CollectLabels(items), "label set keeps earlier history")
	})

	t.Run("empty repository", func(t *testing.T) {
		timeline := Reconstruct(map[int]*schema.TrackedItem{}, ts("2024-01-01T00:00:00Z"))
		assert.NotNil(t, timeline)
		assert.Empty(t, timeline)
		labels := CollectLabels(map[int]*schema.TrackedItem{})
		assert.NotNil(t, labels)
		assert.Empty(t, labels)
	})
}

func TestReconstructKindsAndEphemeralLabels(t *testing.T) {
	items := mustItems(t,
		created(1, schema.PullRequestKind, "2024-01-01T01:00:00Z"),
		labeled(1, "ui", "2024-01-01T02:00:00Z"),
		closed(1, "2024-01-01T03:00:00Z"),
		created(2, schema.IssueKind, "2024-01-01T04:00:00Z"),
		labeled(2, "bug", "2024-01-01T05:00:00Z"),
		labeled(2, "ui", "2024-01-01T05:00:00Z"),
	)
	timeline := Reconstruct(items, ts("2024-01-02T00:00:00Z"))
	require.Len(t, timeline, 2)

	first := timeline[0]
	assert.Equal(t, 1, first.OpenPRs, "closed pull request still counts on its creation day")
	assert.Equal(t, map[string]int{"ui": 1}, first.PRLabels)
	assert.Equal(t, 1, first.OpenIssues)
	assert.Equal(t, map[string]int{"bug": 1, "ui": 1}, first.IssueLabels)

	second := timeline[1]
	assert.Equal(t, 0, second.OpenPRs)
	assert.Equal(t, map[string]int{}, second.PRLabels)
	assert.Equal(t, 1, second.OpenIssues)
}

func TestReconstructBoundaries(t *testing.T) {
	items := mustItems(t,
		created(1, schema.IssueKind, "2024-01-01T00:00:00Z"),
		// Exactly on the boundary of 2024-01-01, so it belongs to 2024-01-02
		closed(1, "2024-01-02T00:00:00Z"),
	)
	timeline := Reconstruct(items, ts("2024-01-02T10:00:00Z"))
	require.Len(t, timeline, 2)
	assert.Equal(t, 1, timeline[0].OpenIssues)
	assert.Equal(t, 0, timeline[1].OpenIssues)

	assert.Empty(t, Reconstruct(items, ts("2023-12-31T23:59:59Z")), "now before the first creation")
}

func TestReconstructNoReappearanceWithoutReopen(t *testing.T) {
	items := mustItems(t,
		created(1, schema.IssueKind, "2024-01-01T00:00:00Z"),
		closed(1, "2024-01-02T12:00:00Z"),
		created(2, schema.IssueKind, "2024-01-01T00:00:00Z"),
		closed(2, "2024-01-02T12:00:00Z"),
		reopened(2, "2024-01-05T06:00:00Z"),
		created(3, schema.IssueKind, "2024-01-04T00:00:00Z"),
	)
	timeline := Reconstruct(items, ts("2024-01-08T00:00:00Z"))
	days := bucketByDay(timeline)

	assert.Equal(t, 2, days["2024-01-01"].OpenIssues)
	assert.Equal(t, 0, days["2024-01-02"].OpenIssues)
	assert.Equal(t, 0, days["2024-01-03"].OpenIssues)
	assert.Equal(t, 1, days["2024-01-04"].OpenIssues, "only the new item")
	for _, day := range []string{"2024-01-05", "2024-01-06", "2024-01-07", "2024-01-08"} {
		assert.Equal(t, 2, days[day].OpenIssues, "reopened item plus the new one on %s", day)
	}
}

// randomHistory produces a plausible event stream with closes, reopens and label churn.
func randomHistory(rng *rand.Rand, numItems, numDays int) []schema.Event {
	start := ts("2024-01-01T00:00:00Z")
	labels := []string{"bug", "docs", "ui", "perf"}
	var events []schema.Event
	seq := int64(0)
	for n := 1; n <= numItems; n++ {
		kind := schema.IssueKind
		if rng.IntN(3) == 0 {
			kind = schema.PullRequestKind
		}
		at := start.Add(time.Duration(rng.IntN(numDays*24)) * time.Hour).Add(time.Duration(rng.IntN(60)) * time.Minute)
		events = append(events, schema.Event{Number: n, Kind: schema.EventCreated, ItemKind: kind, Timestamp: at})

		open := true
		held := map[string]bool{}
		for range rng.IntN(8) {
			// Some steps land on the same instant, some hours or days later
			at = at.Add(time.Duration(rng.IntN(4)) * time.Duration(rng.IntN(30)+1) * time.Hour)
			seq++
			switch rng.IntN(3) {
			case 0:
				kindOf := schema.EventClosed
				if !open {
					kindOf = schema.EventReopened
				}
				open = !open
				events = append(events, schema.Event{Number: n, Kind: kindOf, Timestamp: at, Seq: seq})
			default:
				label := labels[rng.IntN(len(labels))]
				kindOf := schema.EventLabeled
				if held[label] {
					kindOf = schema.EventUnlabeled
				}
				held[label] = !held[label]
				events = append(events, schema.Event{Number: n, Kind: kindOf, Label: label, Timestamp: at, Seq: seq})
			}
		}
	}
	rng.Shuffle(len(events), func(i, j int) { events[i], events[j] = events[j], events[i] })
	return events
}

// replayDay recomputes one day from scratch by querying every item at the day's last instant.
func replayDay(items map[int]*schema.TrackedItem, day time.Time) schema.DayBucket {
	b := schema.NewDayBucket(day)
	at := schema.DayEnd(day)
	for _, item := range items {
		if item.CreatedAt.After(at) {
			continue
		}
		bornToday := schema.FormatDay(item.CreatedAt) == b.Day
		if !item.IsOpenAt(at) && !bornToday {
			continue
		}
		target := b.IssueLabels
		if item.Kind == schema.PullRequestKind {
			b.OpenPRs++
			target = b.PRLabels
		} else {
			b.OpenIssues++
		}
		for _, name := range item.LabelsAt(at) {
			target[name]++
		}
	}
	return b
}

func TestReconstructMatchesFullReplay(t *testing.T) {
	for seed := range uint64(5) {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(seed, 42))
			items := mustItems(t, randomHistory(rng, 60, 45)...)
			now := ts("2024-03-01T12:00:00Z")

			timeline := Reconstruct(items, now)
			require.NotEmpty(t, timeline)

			first := timeline[0].Day
			for _, item := range items {
				assert.GreaterOrEqual(t, schema.FormatDay(item.CreatedAt), first)
			}
			assert.Equal(t, schema.FormatDay(now), timeline[len(timeline)-1].Day)

			doc := schema.PersistedTimeline{Timeline: timeline}
			require.NoError(t, doc.Validate(), "days are contiguous and increasing")

			for _, b := range timeline {
				day, err := schema.ParseDay(b.Day)
				require.NoError(t, err)
				assert.Equal(t, replayDay(items, day), b, "day %s", b.Day)

				for name, n := range b.IssueLabels {
					assert.LessOrEqual(t, n, b.OpenIssues, "label %s on %s", name, b.Day)
				}
			}
		})
	}
}

func TestReconstructIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	events := randomHistory(rng, 40, 30)
	now := ts("2024-02-15T09:30:00Z")

	first, err := json.Marshal(Reconstruct(mustItems(t, events...), now))
	require.NoError(t, err)

	rng.Shuffle(len(events), func(i, j int) { events[i], events[j] = events[j], events[i] })
	second, err := json.Marshal(Reconstruct(mustItems(t, events...), now))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestReconstructSnapshotsAreIndependent(t *testing.T) {
	items := mustItems(t,
		created(1, schema.IssueKind, "2024-01-01T00:00:00Z"),
		labeled(1, "bug", "2024-01-01T01:00:00Z"),
	)
	timeline := Reconstruct(items, ts("2024-01-03T00:00:00Z"))
	require.Len(t, timeline, 3)

	timeline[0].IssueLabels["bug"] = 99
	assert.Equal(t, 1, timeline[1].IssueLabels["bug"])
	assert.Equal(t, 1, timeline[2].IssueLabels["bug"])
}

func BenchmarkReconstruct(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	items, err := BuildItems(testRepo, randomHistory(rng, 2000, 365))
	require.NoError(b, err)
	now := ts("2025-01-15T12:00:00Z")

	for b.Loop() {
		Reconstruct(items, now)
	}
}
