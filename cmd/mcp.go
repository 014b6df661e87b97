package cmd

import (
	"github.com/huangsam/issuetrend/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the issuetrend MCP server",
	Long:  `Launch an MCP server over stdio that lets AI agents read stored timelines via standard tools.`,
	// Logs go to stderr, so stdio stays reserved for the protocol
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg)
	},
}
