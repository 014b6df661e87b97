package iocache

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/issuetrend/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryRunStore(t *testing.T) *RunStoreImpl {
	t.Helper()
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*RunStoreImpl)
}

func TestRunStoreLifecycle(t *testing.T) {
	store := newMemoryRunStore(t)
	repo := schema.RepoID{Owner: "acme", Name: "widgets"}
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	runID, err := store.BeginRun(repo, start)
	require.NoError(t, err)
	assert.Positive(t, runID)

	// A run that has not ended yet has no outcome
	records, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "acme/widgets", records[0].Repo)
	assert.True(t, start.Equal(records[0].StartTime))
	assert.Nil(t, records[0].EndTime)
	assert.Nil(t, records[0].Outcome)

	summary := schema.RunSummary{Outcome: schema.RunSucceeded, Events: 40, Items: 10, Days: 61, Labels: 3}
	require.NoError(t, store.EndRun(runID, start.Add(1500*time.Millisecond), summary))

	records, err = store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	require.NotNil(t, r.EndTime)
	require.NotNil(t, r.DurationMs)
	assert.Equal(t, int64(1500), *r.DurationMs)
	require.NotNil(t, r.Outcome)
	assert.Equal(t, "succeeded", *r.Outcome)
	assert.Nil(t, r.ErrorKind, "a successful run stores no error kind")
	assert.Nil(t, r.Message)
	assert.Equal(t, int32(40), r.Events)
	assert.Equal(t, int32(10), r.Items)
	assert.Equal(t, int32(61), r.Days)
	assert.Equal(t, int32(3), r.Labels)
}

func TestRunStoreFailedRunAndStatus(t *testing.T) {
	store := newMemoryRunStore(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	okID, err := store.BeginRun(schema.RepoID{Owner: "a", Name: "one"}, base)
	require.NoError(t, err)
	require.NoError(t, store.EndRun(okID, base.Add(time.Second), schema.RunSummary{Outcome: schema.RunSucceeded}))

	badID, err := store.BeginRun(schema.RepoID{Owner: "a", Name: "two"}, base.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.EndRun(badID, base.Add(time.Hour+time.Second), schema.RunSummary{
		Outcome:   schema.RunFailed,
		ErrorKind: schema.ConsistencyKind,
		Message:   "day 2024-02-28 changed",
	}))

	records, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, badID, records[0].RunID, "newest run comes first")
	require.NotNil(t, records[0].ErrorKind)
	assert.Equal(t, "consistency", *records[0].ErrorKind)
	require.NotNil(t, records[0].Message)
	assert.Equal(t, "day 2024-02-28 changed", *records[0].Message)

	limited, err := store.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.TotalRuns)
	assert.Equal(t, 1, status.FailedRuns)
	assert.Equal(t, badID, status.LastRunID)
	assert.True(t, base.Add(time.Hour).Equal(status.LastRunTime))
	assert.True(t, base.Equal(status.OldestRunTime))
	assert.Equal(t, int64(2), status.TableSizes[runsTable])
}

func TestRunStoreEmptyStatus(t *testing.T) {
	store := newMemoryRunStore(t)
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, status.TotalRuns)
	assert.Equal(t, int64(0), status.TableSizes[runsTable])
}

func TestRunStoreEndUnknownRun(t *testing.T) {
	store := newMemoryRunStore(t)
	err := store.EndRun(42, time.Now(), schema.RunSummary{Outcome: schema.RunSucceeded})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestNoneRunStore(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	id, err := store.BeginRun(schema.RepoID{Owner: "a", Name: "b"}, time.Now())
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, store.EndRun(id, time.Now(), schema.RunSummary{}))

	records, err := store.ListRuns(5)
	assert.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, store.Close())
}

func TestMigrateRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	var out bytes.Buffer

	require.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, -1, &out))
	assert.Contains(t, out.String(), "Successfully migrated from version 0 to version 2")

	out.Reset()
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, -1, &out))
	assert.Contains(t, out.String(), "already at the latest version")

	out.Reset()
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, 1, &out))
	assert.Contains(t, out.String(), "to version 1")

	out.Reset()
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, 0, &out))
	assert.Contains(t, out.String(), "rolled back")

	// The store recreates its table on a rolled back database
	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	_, err = store.BeginRun(schema.RepoID{Owner: "a", Name: "b"}, time.Now())
	assert.NoError(t, err)
}

func TestMigrateRunsNoneBackend(t *testing.T) {
	assert.Error(t, MigrateRuns(schema.NoneBackend, "", -1, &bytes.Buffer{}))
}

func TestClearRunsSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	_, err = store.BeginRun(schema.RepoID{Owner: "a", Name: "b"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearRuns(schema.SQLiteBackend, dbPath, ""))

	store, err = NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, status.TotalRuns)
}

func TestExportRuns(t *testing.T) {
	store := newMemoryRunStore(t)
	var out bytes.Buffer

	assert.Error(t, ExportRuns(store, "", &out), "output file is required")
	assert.Error(t, ExportRuns(store, filepath.Join(t.TempDir(), "runs.parquet"), &out), "empty history")

	id, err := store.BeginRun(schema.RepoID{Owner: "a", Name: "b"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.EndRun(id, time.Now(), schema.RunSummary{Outcome: schema.RunSucceeded, Days: 3}))

	path := filepath.Join(t.TempDir(), "runs.parquet")
	require.NoError(t, ExportRuns(store, path, &out))
	assert.Contains(t, out.String(), "Exported 1 runs to: "+path)
	assert.FileExists(t, path)
}

func TestExportRunsWithMock(t *testing.T) {
	store := &MockRunStore{}
	store.On("GetStatus").Return(schema.RunStatus{Backend: "mysql", TotalRuns: 1}, nil)
	store.On("ListRuns", 0).Return([]schema.RunRecord{{RunID: 7, Repo: "a/b", StartTime: time.Now()}}, nil)

	path := filepath.Join(t.TempDir(), "runs.parquet")
	var out bytes.Buffer
	require.NoError(t, ExportRuns(store, path, &out))
	assert.Contains(t, out.String(), "from mysql backend")
	store.AssertExpectations(t)
}

func TestPrintRunStatus(t *testing.T) {
	var buf bytes.Buffer
	PrintRunStatus(&buf, schema.RunStatus{
		Backend:     "sqlite",
		Connected:   true,
		TotalRuns:   3,
		FailedRuns:  1,
		LastRunID:   3,
		LastRunTime: time.Now().Add(-2 * time.Hour),
		TableSizes:  map[string]int64{runsTable: 3},
	})
	out := buf.String()
	assert.Contains(t, out, "Runs Backend: sqlite")
	assert.Contains(t, out, "Failed Runs: 1")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "issuetrend_runs: 3 rows")
}
