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

// WriteSeries outputs viewer series, dispatching based on the output format configured.
func WriteSeries(series []schema.Series, cfg *contract.Config) error {
	for _, s := range series {
		if s.Fallback {
			fmt.Fprintf(os.Stderr, "⚠️  %s has no label %q, showing all open items\n", s.Repo, cfg.Label)
		}
	}

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSONSeries(w, series)
		}, "Wrote JSON"); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVSeries(w, series)
		}, "Wrote CSV"); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := writeParquetSeries(series, cfg.OutputFile); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", cfg.OutputFile)
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSeriesTable(w, series)
		}, "Wrote table")
	}
	return nil
}

func writeJSONSeries(w io.Writer, series []schema.Series) error {
	return writeJSON(w, series)
}

// writeCSVSeries writes one row per repository and day.
func writeCSVSeries(w io.Writer, series []schema.Series) error {
	header := []string{"repo", "label", "day", "open_issues", "open_prs", "total"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, s := range series {
			for i, day := range s.Days {
				row := []string{
					s.Repo.String(),
					s.Label,
					day,
					strconv.Itoa(s.Issues[i]),
					strconv.Itoa(s.PRs[i]),
					strconv.Itoa(s.Total[i]),
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeParquetSeries(series []schema.Series, path string) error {
	var rows []parquet.DayRow
	for _, s := range series {
		rows = append(rows, parquet.ConvertSeries(s)...)
	}
	return parquet.WriteDaysParquet(rows, path)
}

// writeSeriesTable renders one table per repository.
func writeSeriesTable(w io.Writer, series []schema.Series) error {
	for _, s := range series {
		title := s.Repo.String()
		if s.Label != "" {
			title += " [" + s.Label + "]"
		}
		if _, err := fmt.Fprintf(w, "%s (%d days)\n", title, s.Len()); err != nil {
			return err
		}

		table := tablewriter.NewWriter(w)
		table.Header([]string{"Day", "Issues", "PRs", "Total"})
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})

		data := make([][]string, 0, s.Len())
		for i, day := range s.Days {
			data = append(data, []string{
				day,
				strconv.Itoa(s.Issues[i]),
				strconv.Itoa(s.PRs[i]),
				strconv.Itoa(s.Total[i]),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}
