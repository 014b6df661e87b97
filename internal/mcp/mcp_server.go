// Package mcp provides the Model Context Protocol (MCP) server over stored timelines.
package mcp

import (
	"context"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/snapshot"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// cacheTTLSeconds bounds how long a document read stays in memory, so a
// concurrent update shows up without restarting the server.
const cacheTTLSeconds = 60

// NewMCPServer initializes and configures the issuetrend MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(store contract.SnapshotStore) *server.MCPServer {
	s := server.NewMCPServer(
		"issuetrend Timeline Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{store: store}

	// --- 1. Tool: list_repositories ---
	s.AddTool(mcp.NewTool("list_repositories",
		mcp.WithDescription("List every repository with a stored timeline, with its covered day range and labels."),
	), h.handleListRepositories)

	// --- 2. Tool: get_timeline ---
	s.AddTool(mcp.NewTool("get_timeline",
		mcp.WithDescription("Get the per-day open issue and pull request counts of a repository."),
		mcp.WithString("repo", mcp.Description("Repository as owner/name."), mcp.Required()),
		mcp.WithString("label", mcp.Description("Only count items carrying this label. Unknown labels fall back to all items.")),
		mcp.WithString("since", mcp.Description("First day to include (YYYY-MM-DD). Defaults to the whole timeline.")),
	), h.handleGetTimeline)

	// --- 3. Tool: get_day ---
	s.AddTool(mcp.NewTool("get_day",
		mcp.WithDescription("Get the full bucket of one day, including per-label counts."),
		mcp.WithString("repo", mcp.Description("Repository as owner/name."), mcp.Required()),
		mcp.WithString("day", mcp.Description("Day to look up (YYYY-MM-DD)."), mcp.Required()),
	), h.handleGetDay)

	return s
}

// StartMCPServer serves the stored timelines of cfg.DataDir over stdio.
func StartMCPServer(ctx context.Context, cfg *contract.Config) error {
	cached, err := snapshot.NewCachedStore(snapshot.NewFileStore(cfg.DataDir), snapshot.DefaultCacheSize, cacheTTLSeconds)
	if err != nil {
		return err
	}
	defer func() {
		contract.Logger(ctx).Debug().Float64("hit_rate", cached.HitRate()).Msg("MCP server stopped")
		cached.Close()
	}()

	s := NewMCPServer(cached)
	return server.ServeStdio(s)
}
