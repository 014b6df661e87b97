package mcp

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/huangsam/issuetrend/core"
	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	store contract.SnapshotStore
}

// RepoSummary describes one stored timeline.
type RepoSummary struct {
	Repo     string   `json:"repo"`
	FirstDay string   `json:"first_day,omitempty"`
	LastDay  string   `json:"last_day,omitempty"`
	Days     int      `json:"days"`
	Labels   []string `json:"labels"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *toolHandler) loadDoc(request mcp.CallToolRequest) (schema.RepoID, *schema.PersistedTimeline, *mcp.CallToolResult) {
	repo, err := schema.ParseRepoID(request.GetString("repo", ""))
	if err != nil {
		return repo, nil, mcp.NewToolResultError(fmt.Sprintf("invalid repo: %v", err))
	}
	doc, err := h.store.Load(repo)
	if err != nil {
		return repo, nil, mcp.NewToolResultError(fmt.Sprintf("load %s failed: %v", repo, err))
	}
	if doc == nil {
		return repo, nil, mcp.NewToolResultError(fmt.Sprintf("no stored timeline for %s", repo))
	}
	return repo, doc, nil
}

func (h *toolHandler) handleListRepositories(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := h.store.List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	summaries := make([]RepoSummary, 0, len(repos))
	for _, repo := range repos {
		doc, err := h.store.Load(repo)
		if err != nil || doc == nil {
			// Corrupt documents are reported by update, not here
			continue
		}
		s := RepoSummary{Repo: repo.String(), Days: len(doc.Timeline), Labels: doc.Labels}
		if s.Days > 0 {
			s.FirstDay = doc.Timeline[0].Day
			s.LastDay = doc.LastDay()
		}
		if s.Labels == nil {
			s.Labels = []string{}
		}
		summaries = append(summaries, s)
	}
	return jsonResult(summaries)
}

func (h *toolHandler) handleGetTimeline(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var since time.Time
	if raw := request.GetString("since", ""); raw != "" {
		day, err := schema.ParseDay(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since: %v", err)), nil
		}
		since = day
	}

	repo, doc, errResult := h.loadDoc(request)
	if errResult != nil {
		return errResult, nil
	}
	series := core.SliceSince(core.SelectSeries(repo, *doc, request.GetString("label", "")), since)
	return jsonResult(series)
}

func (h *toolHandler) handleGetDay(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day := request.GetString("day", "")
	if _, err := schema.ParseDay(day); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid day: %v", err)), nil
	}

	repo, doc, errResult := h.loadDoc(request)
	if errResult != nil {
		return errResult, nil
	}
	for _, b := range doc.Timeline {
		if b.Day == day {
			return jsonResult(b)
		}
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s has no bucket for %s", repo, day)), nil
}
