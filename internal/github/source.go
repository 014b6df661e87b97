package github

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/schema"
)

// Endpoint labels used in metrics.
const (
	issuesEndpoint = "issues"
	eventsEndpoint = "issue_events"
)

// apiIssue is the subset of an issue or pull request listing the source needs.
type apiIssue struct {
	Number      int             `json:"number"`
	State       string          `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
	ClosedAt    *time.Time      `json:"closed_at"`
	PullRequest json.RawMessage `json:"pull_request"`
}

func (i apiIssue) kind() schema.ItemKind {
	if len(i.PullRequest) > 0 && string(i.PullRequest) != "null" {
		return schema.PullRequestKind
	}
	return schema.IssueKind
}

// apiEvent is one entry of the repository issue events listing.
type apiEvent struct {
	ID        int64     `json:"id"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	Label     *struct {
		Name string `json:"name"`
	} `json:"label"`
	Issue *struct {
		Number int `json:"number"`
	} `json:"issue"`
}

// eventKinds maps the GitHub event names that affect open counts. Everything else is ignored.
var eventKinds = map[string]schema.EventKind{
	"closed":    schema.EventClosed,
	"reopened":  schema.EventReopened,
	"labeled":   schema.EventLabeled,
	"unlabeled": schema.EventUnlabeled,
}

var _ contract.EventSource = &Client{} // Compile-time check

// FetchEvents returns the creation, close, reopen and label events of every issue and
// pull request in repo. Closed items whose close is missing from the event log get a
// close at their closed_at time.
func (c *Client) FetchEvents(ctx context.Context, repo schema.RepoID) ([]schema.Event, error) {
	logger := contract.Logger(ctx)

	var issues []apiIssue
	err := c.getAll(ctx, issuesEndpoint, fmt.Sprintf("/repos/%s/%s/issues?state=all", repo.Owner, repo.Name), func(body []byte) error {
		var page []apiIssue
		if err := json.Unmarshal(body, &page); err != nil {
			return err
		}
		issues = append(issues, page...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	var raw []apiEvent
	err = c.getAll(ctx, eventsEndpoint, fmt.Sprintf("/repos/%s/%s/issues/events", repo.Owner, repo.Name), func(body []byte) error {
		var page []apiEvent
		if err := json.Unmarshal(body, &page); err != nil {
			return err
		}
		raw = append(raw, page...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list issue events: %w", err)
	}

	events := make([]schema.Event, 0, len(issues)+len(raw))
	for _, issue := range issues {
		events = append(events, schema.Event{
			Number:    issue.Number,
			Kind:      schema.EventCreated,
			ItemKind:  issue.kind(),
			Timestamp: issue.CreatedAt.UTC(),
		})
	}

	// Latest close seen in the event log per item
	lastClose := make(map[int]time.Time)
	for _, ev := range raw {
		kind, ok := eventKinds[ev.Event]
		if !ok || ev.Issue == nil {
			continue
		}
		out := schema.Event{
			Number:    ev.Issue.Number,
			Kind:      kind,
			Timestamp: ev.CreatedAt.UTC(),
			Seq:       ev.ID,
		}
		if kind == schema.EventLabeled || kind == schema.EventUnlabeled {
			if ev.Label == nil || ev.Label.Name == "" {
				continue
			}
			out.Label = ev.Label.Name
		}
		if kind == schema.EventClosed && out.Timestamp.After(lastClose[out.Number]) {
			lastClose[out.Number] = out.Timestamp
		}
		events = append(events, out)
	}

	synthesized := 0
	for _, issue := range issues {
		if issue.State != string(schema.Closed) || issue.ClosedAt == nil {
			continue
		}
		closedAt := issue.ClosedAt.UTC()
		if last, ok := lastClose[issue.Number]; ok && !last.Before(closedAt) {
			continue
		}
		events = append(events, schema.Event{Number: issue.Number, Kind: schema.EventClosed, Timestamp: closedAt})
		synthesized++
	}

	logger.Debug().
		Int("items", len(issues)).
		Int("events", len(raw)).
		Int("synthesized_closes", synthesized).
		Msg("Fetched event history")
	return events, nil
}
