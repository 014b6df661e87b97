package core

import (
	"time"

	"github.com/huangsam/issuetrend/schema"
)

// SelectSeries derives the viewer series for one repository.
// A label outside the repository's label set is dropped and Fallback is set.
func SelectSeries(repo schema.RepoID, doc schema.PersistedTimeline, label string) schema.Series {
	s := schema.Series{Repo: repo}
	if label != "" {
		if schema.HasLabel(schema.UnionLabels(doc.Labels), label) {
			s.Label = label
		} else {
			s.Fallback = true
		}
	}

	n := len(doc.Timeline)
	s.Days = make([]string, 0, n)
	s.Issues = make([]int, 0, n)
	s.PRs = make([]int, 0, n)
	s.Total = make([]int, 0, n)
	for _, b := range doc.Timeline {
		issues, prs := b.OpenIssues, b.OpenPRs
		if s.Label != "" {
			issues = b.LabelCount(schema.IssueKind, s.Label)
			prs = b.LabelCount(schema.PullRequestKind, s.Label)
		}
		s.Days = append(s.Days, b.Day)
		s.Issues = append(s.Issues, issues)
		s.PRs = append(s.PRs, prs)
		s.Total = append(s.Total, issues+prs)
	}
	return s
}

// SliceSince keeps only the days on or after since. A zero since keeps everything.
func SliceSince(s schema.Series, since time.Time) schema.Series {
	if since.IsZero() {
		return s
	}
	cut := schema.FormatDay(since)
	start := len(s.Days)
	for i, day := range s.Days {
		if day >= cut {
			start = i
			break
		}
	}
	s.Days = s.Days[start:]
	s.Issues = s.Issues[start:]
	s.PRs = s.PRs[start:]
	s.Total = s.Total[start:]
	return s
}
