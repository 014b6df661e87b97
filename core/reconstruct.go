package core

import (
	"cmp"
	"slices"
	"time"

	"github.com/huangsam/issuetrend/schema"
)

// sweepStep is one transition of one item in the flattened sweep order.
type sweepStep struct {
	at      time.Time
	item    *itemState
	isLabel bool
	index   int // Position in the item's own transition list
	state   schema.ItemState
	label   string
	action  schema.LabelAction
}

// itemState is the running state of one item during the sweep.
type itemState struct {
	src    *schema.TrackedItem
	open   bool
	labels map[string]bool
}

// openCounters holds running per-kind counts over currently open items.
type openCounters struct {
	open   map[schema.ItemKind]int
	labels map[schema.ItemKind]map[string]int
}

func newOpenCounters() *openCounters {
	return &openCounters{
		open: map[schema.ItemKind]int{},
		labels: map[schema.ItemKind]map[string]int{
			schema.IssueKind:       {},
			schema.PullRequestKind: {},
		},
	}
}

// add counts (or uncounts, with delta -1) the item and each label it holds.
func (c *openCounters) add(it *itemState, delta int) {
	kind := it.src.Kind
	c.open[kind] += delta
	for name, held := range it.labels {
		if held {
			c.addLabel(kind, name, delta)
		}
	}
}

func (c *openCounters) addLabel(kind schema.ItemKind, name string, delta int) {
	m := c.labels[kind]
	m[name] += delta
	if m[name] <= 0 {
		delete(m, name)
	}
}

// apply advances the item by one transition and keeps the counters in step.
func (c *openCounters) apply(step sweepStep) {
	it := step.item
	if !step.isLabel {
		open := step.state == schema.Open
		if open == it.open {
			return
		}
		if it.open {
			c.add(it, -1)
		}
		it.open = open
		if it.open {
			c.add(it, 1)
		}
		return
	}

	held := step.action == schema.LabelAdded
	if it.labels[step.label] == held {
		return
	}
	if held {
		it.labels[step.label] = true
	} else {
		delete(it.labels, step.label)
	}
	if it.open {
		delta := -1
		if held {
			delta = 1
		}
		c.addLabel(it.src.Kind, step.label, delta)
	}
}

// snapshot renders the counters as an independent bucket for day.
func (c *openCounters) snapshot(day time.Time) schema.DayBucket {
	b := schema.NewDayBucket(day)
	b.OpenIssues = c.open[schema.IssueKind]
	b.OpenPRs = c.open[schema.PullRequestKind]
	for name, n := range c.labels[schema.IssueKind] {
		b.IssueLabels[name] = n
	}
	for name, n := range c.labels[schema.PullRequestKind] {
		b.PRLabels[name] = n
	}
	return b
}

// Reconstruct computes one bucket per UTC day from the earliest creation day through
// the day of now. Day D is evaluated at its exclusive end D+24h: transitions strictly
// before it apply. An item counts for D when it is open at that instant or was created
// during D, and it contributes every label it holds at that instant.
func Reconstruct(items map[int]*schema.TrackedItem, now time.Time) []schema.DayBucket {
	if len(items) == 0 {
		return []schema.DayBucket{}
	}

	states := make([]*itemState, 0, len(items))
	for _, item := range items {
		states = append(states, &itemState{src: item, labels: map[string]bool{}})
	}
	slices.SortFunc(states, func(a, b *itemState) int {
		return cmp.Or(a.src.CreatedAt.Compare(b.src.CreatedAt), cmp.Compare(a.src.Number, b.src.Number))
	})

	firstDay := schema.StartOfDay(states[0].src.CreatedAt)
	lastDay := schema.StartOfDay(now)
	if firstDay.After(lastDay) {
		return []schema.DayBucket{}
	}

	steps := flattenSteps(states)

	counters := newOpenCounters()
	timeline := make([]schema.DayBucket, 0, int(lastDay.Sub(firstDay)/(24*time.Hour))+1)
	next, created := 0, 0
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		boundary := day.AddDate(0, 0, 1)
		for next < len(steps) && steps[next].at.Before(boundary) {
			counters.apply(steps[next])
			next++
		}

		bucket := counters.snapshot(day)

		// Items born today count even when they are closed again by the boundary.
		for created < len(states) && states[created].src.CreatedAt.Before(boundary) {
			it := states[created]
			created++
			if it.open || !day.Equal(schema.StartOfDay(it.src.CreatedAt)) {
				continue
			}
			countEphemeral(&bucket, it)
		}
		timeline = append(timeline, bucket)
	}
	return timeline
}

// flattenSteps sorts all transitions of all items once. Ties keep each item's own order.
func flattenSteps(states []*itemState) []sweepStep {
	total := 0
	for _, it := range states {
		total += len(it.src.StateTransitions) + len(it.src.LabelTransitions)
	}
	steps := make([]sweepStep, 0, total)
	for _, it := range states {
		for i, tr := range it.src.StateTransitions {
			steps = append(steps, sweepStep{at: tr.At, item: it, index: i, state: tr.State})
		}
		for i, tr := range it.src.LabelTransitions {
			steps = append(steps, sweepStep{at: tr.At, item: it, isLabel: true, index: i, label: tr.Label, action: tr.Action})
		}
	}
	slices.SortFunc(steps, func(a, b sweepStep) int {
		return cmp.Or(
			a.at.Compare(b.at),
			cmp.Compare(a.item.src.Number, b.item.src.Number),
			compareBool(a.isLabel, b.isLabel),
			cmp.Compare(a.index, b.index),
		)
	})
	return steps
}

func countEphemeral(b *schema.DayBucket, it *itemState) {
	target := b.IssueLabels
	if it.src.Kind == schema.PullRequestKind {
		b.OpenPRs++
		target = b.PRLabels
	} else {
		b.OpenIssues++
	}
	for name, held := range it.labels {
		if held {
			target[name]++
		}
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// CollectLabels returns every label that was ever attached to any item, sorted.
func CollectLabels(items map[int]*schema.TrackedItem) []string {
	sets := make([][]string, 0, len(items))
	for _, item := range items {
		sets = append(sets, item.EverLabeled())
	}
	return schema.UnionLabels(sets...)
}
