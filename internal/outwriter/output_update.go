package outwriter

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteUpdateSummary prints the outcome of every repository of an update run to stdout.
func WriteUpdateSummary(results []schema.UpdateResult, cfg *contract.Config, duration time.Duration) error {
	return writeUpdateTable(os.Stdout, results, cfg, duration)
}

// writeUpdateTable renders one row per repository followed by a totals line.
func writeUpdateTable(w io.Writer, results []schema.UpdateResult, cfg *contract.Config, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Repo", "Status", "Kind", "Events", "Days", "Labels", "Took", "Message"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	failed := 0
	msgWidth := getMaxMessageWidth()
	data := make([][]string, 0, len(results))
	for _, r := range results {
		status := contract.GetPlainOutcome(r.Summary.Outcome)
		if cfg.UseColors {
			status = contract.GetColorOutcome(r.Summary.Outcome)
		}
		if r.Summary.Outcome != schema.RunSucceeded {
			failed++
		}
		data = append(data, []string{
			r.Repo.String(),
			status,
			string(r.Summary.ErrorKind),
			strconv.Itoa(r.Summary.Events),
			strconv.Itoa(r.Summary.Days),
			strconv.Itoa(r.Summary.Labels),
			r.Duration.Round(time.Millisecond).String(),
			contract.TruncateText(r.Summary.Message, msgWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Updated %d of %d repositories in %v with %d workers. Data dir: %s\n",
		len(results)-failed, len(results), duration.Round(time.Millisecond), cfg.Workers, cfg.DataDir)
	return err
}
