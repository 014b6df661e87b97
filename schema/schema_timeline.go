package schema

import (
	"fmt"
	"time"
)

// DayBucket is the open-item snapshot of one repository for one UTC calendar day.
// Label maps never hold zero counts and are never nil, so they always encode as objects.
type DayBucket struct {
	Day         string         `json:"day"`
	OpenIssues  int            `json:"open_issues"`
	OpenPRs     int            `json:"open_prs"`
	IssueLabels map[string]int `json:"issue_labels"`
	PRLabels    map[string]int `json:"pr_labels"`
}

// NewDayBucket returns an empty bucket for the given day.
func NewDayBucket(day time.Time) DayBucket {
	return DayBucket{
		Day:         FormatDay(day),
		IssueLabels: map[string]int{},
		PRLabels:    map[string]int{},
	}
}

// Normalize replaces nil label maps with empty ones and drops zero or negative entries.
func (b *DayBucket) Normalize() {
	if b.IssueLabels == nil {
		b.IssueLabels = map[string]int{}
	}
	if b.PRLabels == nil {
		b.PRLabels = map[string]int{}
	}
	for name, n := range b.IssueLabels {
		if n <= 0 {
			delete(b.IssueLabels, name)
		}
	}
	for name, n := range b.PRLabels {
		if n <= 0 {
			delete(b.PRLabels, name)
		}
	}
}

// LabelCount returns the open count for a label and kind, treating a missing key as zero.
func (b DayBucket) LabelCount(kind ItemKind, label string) int {
	if kind == PullRequestKind {
		return b.PRLabels[label]
	}
	return b.IssueLabels[label]
}

// PersistedTimeline is the stored document for one repository.
type PersistedTimeline struct {
	Labels   []string    `json:"labels"`
	Timeline []DayBucket `json:"timeline"`
}

// LastDay returns the day of the final bucket, or "" for an empty timeline.
func (p *PersistedTimeline) LastDay() string {
	if p == nil || len(p.Timeline) == 0 {
		return ""
	}
	return p.Timeline[len(p.Timeline)-1].Day
}

// Validate checks that days are well formed, strictly increasing and gap free.
func (p *PersistedTimeline) Validate() error {
	var prev time.Time
	for i, b := range p.Timeline {
		day, err := ParseDay(b.Day)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if i > 0 {
			if !day.After(prev) {
				return fmt.Errorf("entry %d: day %s does not follow %s", i, b.Day, FormatDay(prev))
			}
			if !day.Equal(prev.AddDate(0, 0, 1)) {
				return fmt.Errorf("entry %d: gap between %s and %s", i, FormatDay(prev), b.Day)
			}
		}
		if b.OpenIssues < 0 || b.OpenPRs < 0 {
			return fmt.Errorf("entry %d: negative open count on %s", i, b.Day)
		}
		prev = day
	}
	return nil
}

// StartOfDay truncates t to midnight UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayEnd returns the last representable instant of the UTC day containing t.
// It is the query instant of a day bucket: the day's exclusive boundary minus one tick.
func DayEnd(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FormatDay renders the UTC calendar day of t.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseDay parses an ISO 8601 calendar date as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return t, nil
}
