package iocache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/schema"
)

// runsTable is the name of the table for the run history.
const runsTable = "issuetrend_runs"

// RunStoreImpl records one row per repository update.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore opens the run history and creates its table when missing.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	if backend == schema.NoneBackend {
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, contract.GetRunsDBFilePath())
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}

	if err := createRunsTable(db, backend); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &RunStoreImpl{db: db, backend: backend}, nil
}

// createRunsTable applies the base migration so a fresh database works without running migrate.
func createRunsTable(db *sql.DB, backend schema.DatabaseBackend) error {
	query, err := migrationsFS.ReadFile(fmt.Sprintf("migrations/%s/000001_create_runs.up.sql", backend))
	if err != nil {
		return fmt.Errorf("failed to read runs table definition: %w", err)
	}
	if _, err := db.Exec(string(query)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", runsTable, err)
	}
	return nil
}

// BeginRun inserts a new run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(repo schema.RepoID, startTime time.Time) (int64, error) {
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return 0, nil
	}

	quotedTableName := quoteTableName(runsTable, rs.backend)
	var runID int64
	var err error

	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (repo, start_time) VALUES ($1, $2) RETURNING run_id`, quotedTableName)
		err = rs.db.QueryRow(query, repo.String(), startTime).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (repo, start_time) VALUES (?, ?)`, quotedTableName)
		var result sql.Result
		result, err = rs.db.Exec(query, repo.String(), formatTime(startTime, rs.backend))
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run for %s: %w", repo, err)
	}
	return runID, nil
}

// EndRun records the outcome and counters of a run.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, summary schema.RunSummary) error {
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return nil
	}

	quotedTableName := quoteTableName(runsTable, rs.backend)
	p := func(n int) string { return placeholder(rs.backend, n) }

	startQuery := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, quotedTableName, p(1))
	startTime, err := rs.scanTime(rs.db.QueryRow(startQuery, runID))
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	durationMs := endTime.Sub(startTime).Milliseconds()

	updateQuery := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, outcome = %s, error_kind = %s, message = %s,
		events = %s, items = %s, days = %s, labels = %s WHERE run_id = %s`,
		quotedTableName, p(1), p(2), p(3), p(4), p(5), p(6), p(7), p(8), p(9), p(10))
	_, err = rs.db.Exec(updateQuery,
		formatTime(endTime, rs.backend), durationMs, string(summary.Outcome),
		nullString(string(summary.ErrorKind)), nullString(summary.Message),
		summary.Events, summary.Items, summary.Days, summary.Labels, runID)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", runID, err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit returns every run.
func (rs *RunStoreImpl) ListRuns(limit int) ([]schema.RunRecord, error) {
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, repo, start_time, end_time, run_duration_ms, outcome, error_kind, message,
		events, items, days, labels FROM %s ORDER BY run_id DESC`, quoteTableName(runsTable, rs.backend))
	var args []any
	if limit > 0 {
		query += " LIMIT " + placeholder(rs.backend, 1)
		args = append(args, limit)
	}

	rows, err := rs.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		if rs.backend == schema.SQLiteBackend {
			var startStr string
			var endStr *string
			if err := rows.Scan(&record.RunID, &record.Repo, &startStr, &endStr, &record.DurationMs, &record.Outcome,
				&record.ErrorKind, &record.Message, &record.Events, &record.Items, &record.Days, &record.Labels); err != nil {
				return nil, fmt.Errorf("failed to scan run: %w", err)
			}
			if record.StartTime, err = parseTime(startStr); err != nil {
				return nil, fmt.Errorf("failed to parse start_time: %w", err)
			}
			if endStr != nil {
				end, err := parseTime(*endStr)
				if err != nil {
					return nil, fmt.Errorf("failed to parse end_time: %w", err)
				}
				record.EndTime = &end
			}
		} else if err := rows.Scan(&record.RunID, &record.Repo, &record.StartTime, &record.EndTime, &record.DurationMs, &record.Outcome,
			&record.ErrorKind, &record.Message, &record.Events, &record.Items, &record.Days, &record.Labels); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return status, nil
	}

	quotedTableName := quoteTableName(runsTable, rs.backend)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTableName)
	if err := rs.db.QueryRow(countQuery).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}
	status.TableSizes[runsTable] = int64(status.TotalRuns)
	if status.TotalRuns == 0 {
		return status, nil
	}

	failedQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE outcome = %s", quotedTableName, placeholder(rs.backend, 1))
	if err := rs.db.QueryRow(failedQuery, string(schema.RunFailed)).Scan(&status.FailedRuns); err != nil {
		return status, fmt.Errorf("failed to get failed runs: %w", err)
	}

	lastQuery := fmt.Sprintf("SELECT run_id FROM %s ORDER BY run_id DESC LIMIT 1", quotedTableName)
	if err := rs.db.QueryRow(lastQuery).Scan(&status.LastRunID); err != nil {
		return status, fmt.Errorf("failed to get last run id: %w", err)
	}

	var err error
	timeQuery := fmt.Sprintf("SELECT start_time FROM %s WHERE run_id = %s", quotedTableName, placeholder(rs.backend, 1))
	if status.LastRunTime, err = rs.scanTime(rs.db.QueryRow(timeQuery, status.LastRunID)); err != nil {
		return status, fmt.Errorf("failed to get last run time: %w", err)
	}

	oldestQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", quotedTableName)
	if status.OldestRunTime, err = rs.scanTime(rs.db.QueryRow(oldestQuery)); err != nil {
		return status, fmt.Errorf("failed to get oldest run time: %w", err)
	}
	return status, nil
}

// scanTime reads a single timestamp column, handling the text storage of SQLite.
func (rs *RunStoreImpl) scanTime(row *sql.Row) (time.Time, error) {
	if rs.backend != schema.SQLiteBackend {
		var t time.Time
		err := row.Scan(&t)
		return t, err
	}
	var s string
	if err := row.Scan(&s); err != nil {
		return time.Time{}, err
	}
	return parseTime(s)
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
