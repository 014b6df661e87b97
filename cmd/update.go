package cmd

import (
	"fmt"

	"github.com/huangsam/issuetrend/core"
	"github.com/spf13/cobra"
)

// updateCmd runs one update cycle per repository.
var updateCmd = &cobra.Command{
	Use:   "update [owner/name ...]",
	Short: "Fetch event history and extend the stored daily timelines.",
	Long: `Fetch the full issue and pull request event history of each repository from
the GitHub API, replay it into per-day open counts, and merge the result with
the stored timeline.

Days before today are immutable: if the recomputed history disagrees with a
stored past day, the update fails for that repository and the stored document
is left untouched. Today is always recomputed.

Repositories come from the arguments and the "repos" list of the config file.
One failing repository never stops the others; the command exits non-zero if
any of them failed.

Examples:
  # Update two repositories
  GITHUB_TOKEN=... issuetrend update golang/go kubernetes/kubernetes

  # Update the configured repositories with more parallelism
  issuetrend update --workers 8

  # Start over after a document was corrupted
  issuetrend update acme/widgets --rebuild

  # Export metrics for the node_exporter textfile collector
  issuetrend update --metrics-file /var/lib/node_exporter/issuetrend.prom`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := core.ExecuteUpdate(rootCtx, cfg, storeManager); err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		return nil
	},
}

// showCmd prints the stored series of repositories.
var showCmd = &cobra.Command{
	Use:   "show [owner/name ...]",
	Short: "Print the stored daily counts of repositories.",
	Long: `Print the per-day open issue and pull request counts of stored timelines.

With --label, only items carrying that label are counted. A label that never
occurred in a repository falls back to all items with a warning. Arguments are
added to the "repos" list of the config file.

Examples:
  # Show the whole timeline
  issuetrend show acme/widgets

  # Show bug counts since March as CSV
  issuetrend show acme/widgets --label bug --since 2024-03-01 --output csv`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := core.ExecuteShow(rootCtx, cfg, storeManager); err != nil {
			return fmt.Errorf("cannot show timeline: %w", err)
		}
		return nil
	},
}

// chartCmd writes an HTML chart page.
var chartCmd = &cobra.Command{
	Use:   "chart [owner/name ...]",
	Short: "Write an HTML line chart of stored timelines.",
	Long: `Render one line chart per repository with the open issues, open pull requests
and their total per day. Without arguments every stored repository is charted.

Examples:
  # Chart everything under the data directory
  issuetrend chart

  # Chart bug counts of one repository
  issuetrend chart acme/widgets --label bug --chart-file bugs.html`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := core.ExecuteChart(rootCtx, cfg, storeManager); err != nil {
			return fmt.Errorf("cannot write chart: %w", err)
		}
		return nil
	},
}
