package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/iocache"
	"github.com/huangsam/issuetrend/internal/metrics"
	"github.com/huangsam/issuetrend/internal/snapshot"
	"github.com/huangsam/issuetrend/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = ts("2024-01-03T15:00:00Z")

func fixedClock() time.Time { return fixedNow }

func sampleEvents() []schema.Event {
	return []schema.Event{
		created(1, schema.IssueKind, "2024-01-01T10:00:00Z"),
		labeled(1, "bug", "2024-01-01T11:00:00Z"),
		created(2, schema.PullRequestKind, "2024-01-02T09:00:00Z"),
		closed(1, "2024-01-03T08:00:00Z"),
	}
}

func TestUpdateRepoSuccess(t *testing.T) {
	source := &contract.MockEventSource{}
	store := &contract.MockSnapshotStore{}
	runs := &iocache.MockRunStore{}

	source.On("FetchEvents", mock.Anything, testRepo).Return(sampleEvents(), nil)
	store.On("Load", testRepo).Return(nil, nil)

	var saved schema.PersistedTimeline
	store.On("Save", testRepo, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(schema.PersistedTimeline)
	}).Return(nil)

	runs.On("BeginRun", testRepo, fixedNow).Return(int64(7), nil)
	runs.On("EndRun", int64(7), fixedNow, mock.MatchedBy(func(s schema.RunSummary) bool {
		return s.Outcome == schema.RunSucceeded && s.Events == 4 && s.Items == 2 && s.Days == 3 && s.Labels == 1
	})).Return(nil)

	u := &Updater{Source: source, Store: store, Runs: runs, Workers: 1, Now: fixedClock}
	result := u.UpdateRepo(context.Background(), testRepo)

	require.NoError(t, result.Err)
	assert.Equal(t, testRepo, result.Repo)
	assert.Equal(t, schema.RunSucceeded, result.Summary.Outcome)
	assert.Empty(t, result.Summary.ErrorKind)

	require.Len(t, saved.Timeline, 3)
	assert.Equal(t, []string{"bug"}, saved.Labels)
	assert.Equal(t, "2024-01-03", saved.Timeline[2].Day)
	assert.Equal(t, 0, saved.Timeline[2].OpenIssues)
	assert.Equal(t, 1, saved.Timeline[2].OpenPRs)

	source.AssertExpectations(t)
	store.AssertExpectations(t)
	runs.AssertExpectations(t)
}

func TestUpdateRepoFetchFailure(t *testing.T) {
	source := &contract.MockEventSource{}
	store := &contract.MockSnapshotStore{}
	runs := &iocache.MockRunStore{}

	source.On("FetchEvents", mock.Anything, testRepo).Return(nil, schema.ErrSourceUnavailable)
	store.On("Load", testRepo).Return(nil, nil)
	runs.On("BeginRun", testRepo, fixedNow).Return(int64(1), nil)
	runs.On("EndRun", int64(1), fixedNow, mock.MatchedBy(func(s schema.RunSummary) bool {
		return s.Outcome == schema.RunFailed && s.ErrorKind == schema.SourceUnavailableKind
	})).Return(nil)

	u := &Updater{Source: source, Store: store, Runs: runs, Now: fixedClock}
	result := u.UpdateRepo(context.Background(), testRepo)

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, schema.ErrSourceUnavailable)
	assert.Equal(t, schema.SourceUnavailableKind, result.Summary.ErrorKind)
	assert.Contains(t, result.Summary.Message, "fetch events")

	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	runs.AssertExpectations(t)
}

func TestUpdateRepoConsistencyKeepsStoredDocument(t *testing.T) {
	source := &contract.MockEventSource{}
	store := &contract.MockSnapshotStore{}

	// The stored first day disagrees with what the history says
	prev := &schema.PersistedTimeline{
		Labels:   []string{"bug"},
		Timeline: []schema.DayBucket{bucket("2024-01-01", 5, 0, nil)},
	}
	source.On("FetchEvents", mock.Anything, testRepo).Return(sampleEvents(), nil)
	store.On("Load", testRepo).Return(prev, nil)

	u := &Updater{Source: source, Store: store, Now: fixedClock}
	result := u.UpdateRepo(context.Background(), testRepo)

	assert.ErrorIs(t, result.Err, schema.ErrConsistency)
	assert.Equal(t, schema.ConsistencyKind, result.Summary.ErrorKind)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateRepoCorruption(t *testing.T) {
	corrupt := errors.Join(errors.New("data/acme/widgets.json"), schema.ErrDataCorruption)

	t.Run("without rebuild", func(t *testing.T) {
		source := &contract.MockEventSource{}
		store := &contract.MockSnapshotStore{}
		store.On("Load", testRepo).Return(nil, corrupt)

		u := &Updater{Source: source, Store: store, Now: fixedClock}
		result := u.UpdateRepo(context.Background(), testRepo)

		assert.ErrorIs(t, result.Err, schema.ErrDataCorruption)
		assert.Equal(t, schema.DataCorruptionKind, result.Summary.ErrorKind)
		source.AssertNotCalled(t, "FetchEvents", mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "Quarantine", mock.Anything)
	})

	t.Run("with rebuild", func(t *testing.T) {
		source := &contract.MockEventSource{}
		store := &contract.MockSnapshotStore{}
		store.On("Load", testRepo).Return(nil, corrupt)
		store.On("Quarantine", testRepo).Return("data/acme/widgets.json.corrupt-1", nil)
		store.On("Save", testRepo, mock.Anything).Return(nil)
		source.On("FetchEvents", mock.Anything, testRepo).Return(sampleEvents(), nil)

		u := &Updater{Source: source, Store: store, Rebuild: true, Now: fixedClock}
		result := u.UpdateRepo(context.Background(), testRepo)

		require.NoError(t, result.Err)
		assert.Equal(t, 3, result.Summary.Days)
		store.AssertExpectations(t)
	})
}

func TestUpdateRepoRebuildIgnoresStoredDocument(t *testing.T) {
	source := &contract.MockEventSource{}
	store := &contract.MockSnapshotStore{}
	prev := &schema.PersistedTimeline{Timeline: []schema.DayBucket{bucket("2024-01-01", 5, 0, nil)}}

	source.On("FetchEvents", mock.Anything, testRepo).Return(sampleEvents(), nil)
	store.On("Load", testRepo).Return(prev, nil)
	store.On("Save", testRepo, mock.Anything).Return(nil)

	u := &Updater{Source: source, Store: store, Rebuild: true, Now: fixedClock}
	result := u.UpdateRepo(context.Background(), testRepo)

	require.NoError(t, result.Err)
	store.AssertNotCalled(t, "Quarantine", mock.Anything)
}

func TestUpdateRepoRunTrackingIsOptional(t *testing.T) {
	source := &contract.MockEventSource{}
	store := &contract.MockSnapshotStore{}
	runs := &iocache.MockRunStore{}

	source.On("FetchEvents", mock.Anything, testRepo).Return(sampleEvents(), nil)
	store.On("Load", testRepo).Return(nil, nil)
	store.On("Save", testRepo, mock.Anything).Return(nil)
	runs.On("BeginRun", testRepo, fixedNow).Return(int64(0), errors.New("database is locked"))

	u := &Updater{Source: source, Store: store, Runs: runs, Now: fixedClock}
	result := u.UpdateRepo(context.Background(), testRepo)

	require.NoError(t, result.Err, "run tracking failures never fail the update")
	runs.AssertNotCalled(t, "EndRun", mock.Anything, mock.Anything, mock.Anything)
}

// stubSource returns canned results per repository and is safe for concurrent use.
type stubSource struct {
	mu     sync.Mutex
	calls  int
	events map[schema.RepoID][]schema.Event
	errs   map[schema.RepoID]error
}

func (s *stubSource) FetchEvents(_ context.Context, repo schema.RepoID) ([]schema.Event, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if err := s.errs[repo]; err != nil {
		return nil, err
	}
	return s.events[repo], nil
}

func TestUpdateAllOrderAndIsolation(t *testing.T) {
	repos := []schema.RepoID{
		{Owner: "acme", Name: "one"},
		{Owner: "acme", Name: "two"},
		{Owner: "acme", Name: "three"},
		{Owner: "acme", Name: "four"},
	}
	source := &stubSource{
		events: map[schema.RepoID][]schema.Event{},
		errs:   map[schema.RepoID]error{repos[1]: schema.ErrSourceUnavailable},
	}
	for _, repo := range repos {
		source.events[repo] = sampleEvents()
	}
	store := snapshot.NewFileStore(t.TempDir())

	u := &Updater{Source: source, Store: store, Workers: 3, Now: fixedClock}
	results := u.UpdateAll(context.Background(), repos)

	require.Len(t, results, len(repos))
	for i, r := range results {
		assert.Equal(t, repos[i], r.Repo, "results keep input order")
	}
	assert.Error(t, results[1].Err)
	for _, i := range []int{0, 2, 3} {
		require.NoError(t, results[i].Err)
		doc, err := store.Load(repos[i])
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Len(t, doc.Timeline, 3)
	}
	missing, err := store.Load(repos[1])
	require.NoError(t, err)
	assert.Nil(t, missing, "failed repository leaves nothing behind")
	assert.Equal(t, 4, source.calls)

	joined := JoinFailures(results)
	require.Error(t, joined)
	assert.ErrorIs(t, joined, schema.ErrSourceUnavailable)
	assert.ErrorContains(t, joined, "acme/two")
}

func TestUpdateAllSecondRunIsStable(t *testing.T) {
	source := &stubSource{events: map[schema.RepoID][]schema.Event{testRepo: sampleEvents()}}
	store := snapshot.NewFileStore(t.TempDir())

	first := &Updater{Source: source, Store: store, Now: fixedClock}
	require.NoError(t, JoinFailures(first.UpdateAll(context.Background(), []schema.RepoID{testRepo})))

	// A day later nothing happened; the new day copies the state of the previous one
	next := &Updater{Source: source, Store: store, Now: func() time.Time { return fixedNow.Add(24 * time.Hour) }}
	results := next.UpdateAll(context.Background(), []schema.RepoID{testRepo})
	require.NoError(t, JoinFailures(results))

	doc, err := store.Load(testRepo)
	require.NoError(t, err)
	require.Len(t, doc.Timeline, 4)
	assert.Equal(t, doc.Timeline[2].OpenPRs, doc.Timeline[3].OpenPRs)
	assert.Equal(t, "2024-01-04", doc.Timeline[3].Day)
}

func TestUpdateAllEmpty(t *testing.T) {
	u := &Updater{Source: &stubSource{}, Store: snapshot.NewFileStore(t.TempDir()), Workers: 8}
	assert.Empty(t, u.UpdateAll(context.Background(), nil))
	assert.NoError(t, JoinFailures(nil))
}

func TestRunUpdateWritesMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := &contract.Config{
		Repos:       []schema.RepoID{testRepo},
		DataDir:     dir,
		Workers:     1,
		MetricsFile: filepath.Join(dir, "issuetrend.prom"),
	}
	recorder := metrics.NewRecorder(true)
	source := &stubSource{events: map[schema.RepoID][]schema.Event{testRepo: sampleEvents()}}
	u := &Updater{Source: source, Store: snapshot.NewFileStore(dir), Metrics: recorder, Workers: 1, Now: fixedClock}

	require.NoError(t, runUpdate(context.Background(), cfg, u, recorder, time.Now()))

	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "issuetrend_")
	assert.Contains(t, string(data), "acme/widgets")
}

func TestExecutorsRequireRepos(t *testing.T) {
	cfg := &contract.Config{DataDir: t.TempDir()}
	assert.ErrorIs(t, ExecuteUpdate(context.Background(), cfg, nil), ErrNoRepos)
	assert.ErrorIs(t, ExecuteShow(context.Background(), cfg, nil), ErrNoRepos)
}

func seedStore(t *testing.T, dir string) *snapshot.FileStore {
	t.Helper()
	store := snapshot.NewFileStore(dir)
	require.NoError(t, store.Save(testRepo, sampleDoc()))
	return store
}

func TestLoadSeries(t *testing.T) {
	store := seedStore(t, t.TempDir())

	series, err := LoadSeries(store, []schema.RepoID{testRepo}, "bug", ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, series[0].Days)
	assert.Equal(t, []int{0, 1}, series[0].Total)

	_, err = LoadSeries(store, []schema.RepoID{{Owner: "acme", Name: "gadgets"}}, "", time.Time{})
	assert.ErrorContains(t, err, "no stored timeline for acme/gadgets")
}

func TestExecuteShow(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir)
	cfg := &contract.Config{
		Repos:      []schema.RepoID{testRepo},
		DataDir:    dir,
		Output:     schema.CSVOut,
		OutputFile: filepath.Join(dir, "series.csv"),
	}

	require.NoError(t, ExecuteShow(context.Background(), cfg, nil))
	data, err := os.ReadFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "acme/widgets,,2024-01-02,4,2,6")
}

func TestExecuteChart(t *testing.T) {
	t.Run("defaults to stored repositories", func(t *testing.T) {
		dir := t.TempDir()
		seedStore(t, dir)
		cfg := &contract.Config{DataDir: dir, ChartFile: filepath.Join(dir, "chart.html")}

		require.NoError(t, ExecuteChart(context.Background(), cfg, nil))
		data, err := os.ReadFile(cfg.ChartFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "acme/widgets")
	})

	t.Run("empty data directory", func(t *testing.T) {
		cfg := &contract.Config{DataDir: t.TempDir(), ChartFile: filepath.Join(t.TempDir(), "chart.html")}
		assert.ErrorContains(t, ExecuteChart(context.Background(), cfg, nil), "run update first")
	})
}
