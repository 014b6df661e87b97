package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/parquet"
	"github.com/huangsam/issuetrend/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteRuns outputs recorded runs, dispatching based on the output format configured.
func WriteRuns(runs []schema.RunRecord, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, runs)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVRuns(w, runs)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := parquet.WriteRunsParquet(parquet.ConvertRunRecords(runs), cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", cfg.OutputFile)
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunsTable(w, runs, cfg.UseColors)
		}, "Wrote table")
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func formatRunTimes(r schema.RunRecord) (start, end, took string) {
	start = r.StartTime.Format(contract.DateTimeFormat)
	if r.EndTime != nil {
		end = r.EndTime.Format(contract.DateTimeFormat)
	}
	if r.DurationMs != nil {
		took = strconv.FormatInt(*r.DurationMs, 10)
	}
	return start, end, took
}

func writeCSVRuns(w io.Writer, runs []schema.RunRecord) error {
	header := []string{"run_id", "repo", "start_time", "end_time", "duration_ms", "outcome", "error_kind", "events", "items", "days", "labels", "message"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range runs {
			start, end, took := formatRunTimes(r)
			row := []string{
				strconv.FormatInt(r.RunID, 10),
				r.Repo,
				start,
				end,
				took,
				deref(r.Outcome),
				deref(r.ErrorKind),
				strconv.Itoa(int(r.Events)),
				strconv.Itoa(int(r.Items)),
				strconv.Itoa(int(r.Days)),
				strconv.Itoa(int(r.Labels)),
				deref(r.Message),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeRunsTable renders runs newest first, as the store returns them.
func writeRunsTable(w io.Writer, runs []schema.RunRecord, useColors bool) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Repo", "Started", "Took (ms)", "Status", "Kind", "Days", "Labels"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(runs))
	for _, r := range runs {
		start, _, took := formatRunTimes(r)
		status := "RUNNING"
		if r.Outcome != nil {
			outcome := schema.RunOutcome(*r.Outcome)
			status = contract.GetPlainOutcome(outcome)
			if useColors {
				status = contract.GetColorOutcome(outcome)
			}
		} else if useColors {
			status = contract.MutedColor.Sprint(status)
		}
		data = append(data, []string{
			strconv.FormatInt(r.RunID, 10),
			r.Repo,
			start,
			took,
			status,
			deref(r.ErrorKind),
			strconv.Itoa(int(r.Days)),
			strconv.Itoa(int(r.Labels)),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
