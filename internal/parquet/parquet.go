// Package parquet provides data structures and functions for exporting issuetrend
// series and run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/issuetrend/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single repository update.
// This struct maps to the issuetrend_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// Repo is the owner/name of the updated repository
	Repo string `parquet:"repo,snappy"`

	// StartTime is when the update began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the update finished (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// DurationMs is the wall time of the update in milliseconds (nullable)
	DurationMs *int64 `parquet:"run_duration_ms,optional,snappy"`

	// Outcome is succeeded or failed (nullable while running)
	Outcome *string `parquet:"outcome,optional,snappy"`

	// ErrorKind classifies the failure (nullable)
	ErrorKind *string `parquet:"error_kind,optional,snappy"`

	// Message is the error text of a failed run (nullable)
	Message *string `parquet:"message,optional,snappy"`

	Events int32 `parquet:"events,snappy"`
	Items  int32 `parquet:"items,snappy"`
	Days   int32 `parquet:"days,snappy"`
	Labels int32 `parquet:"labels,snappy"`
}

// DayRow is one day of a viewer series.
type DayRow struct {
	Repo string `parquet:"repo,snappy"`

	// Day is the ISO 8601 calendar date
	Day string `parquet:"day,snappy"`

	// Label is the selected label, absent for the unfiltered series
	Label *string `parquet:"label,optional,snappy"`

	OpenIssues int32 `parquet:"open_issues,snappy"`
	OpenPRs    int32 `parquet:"open_prs,snappy"`
	Total      int32 `parquet:"total,snappy"`
}

// writeParquet writes rows to outputPath with a schema inferred from T's struct tags.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteRunsParquet writes run rows to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteDaysParquet writes series rows to a Parquet file.
func WriteDaysParquet(data []DayRow, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ConvertRunRecords converts schema.RunRecord to Run for Parquet export.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	result := make([]Run, len(records))
	for i, record := range records {
		result[i] = Run{
			RunID:      record.RunID,
			Repo:       record.Repo,
			StartTime:  record.StartTime,
			EndTime:    record.EndTime,
			DurationMs: record.DurationMs,
			Outcome:    record.Outcome,
			ErrorKind:  record.ErrorKind,
			Message:    record.Message,
			Events:     record.Events,
			Items:      record.Items,
			Days:       record.Days,
			Labels:     record.Labels,
		}
	}
	return result
}

// ConvertSeries flattens a series into one row per day.
func ConvertSeries(s schema.Series) []DayRow {
	var label *string
	if s.Label != "" {
		l := s.Label
		label = &l
	}
	rows := make([]DayRow, s.Len())
	for i, day := range s.Days {
		rows[i] = DayRow{
			Repo:       s.Repo.String(),
			Day:        day,
			Label:      label,
			OpenIssues: int32(s.Issues[i]),
			OpenPRs:    int32(s.PRs[i]),
			Total:      int32(s.Total[i]),
		}
	}
	return rows
}
