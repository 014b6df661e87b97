// Package core has the timeline reconstruction, merge and update logic.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/github"
	"github.com/huangsam/issuetrend/internal/metrics"
	"github.com/huangsam/issuetrend/internal/outwriter"
	"github.com/huangsam/issuetrend/internal/snapshot"
	"github.com/huangsam/issuetrend/schema"
)

// ExecutorFunc defines the function signature for executing the different commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error

// ErrNoRepos is returned when a command has no repository to work on.
var ErrNoRepos = errors.New("no repositories given (pass owner/name arguments or set repos in the config file)")

// ExecuteUpdate runs one update cycle for every configured repository and prints a summary.
// It returns the combined error of all failed repositories.
func ExecuteUpdate(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	if len(cfg.Repos) == 0 {
		return ErrNoRepos
	}
	start := time.Now()

	recorder := metrics.NewRecorder(cfg.MetricsFile != "")
	client, err := github.NewClient(github.Options{
		Token:   cfg.Token,
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
		Budget:  github.NewRateBudget(cfg.RateFloor),
		Cache:   mgr.GetEventCache(),
		Metrics: recorder,
	})
	if err != nil {
		return fmt.Errorf("create GitHub client: %w", err)
	}
	defer client.Close()

	updater := &Updater{
		Source:  client,
		Store:   snapshot.NewFileStore(cfg.DataDir),
		Runs:    mgr.GetRunStore(),
		Metrics: recorder,
		Workers: cfg.Workers,
		Rebuild: cfg.Rebuild,
	}
	return runUpdate(ctx, cfg, updater, recorder, start)
}

// runUpdate drives the updater and reports on its results.
func runUpdate(ctx context.Context, cfg *contract.Config, updater *Updater, recorder metrics.Recorder, start time.Time) error {
	results := updater.UpdateAll(ctx, cfg.Repos)

	if err := outwriter.WriteUpdateSummary(results, cfg, time.Since(start)); err != nil {
		contract.LogWarn("Failed to print update summary", err)
	}
	if cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			contract.Logger(ctx).Warn().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to write metrics textfile")
		}
	}
	return JoinFailures(results)
}

// ExecuteShow prints the viewer series of every configured repository.
func ExecuteShow(_ context.Context, cfg *contract.Config, _ contract.StoreManager) error {
	if len(cfg.Repos) == 0 {
		return ErrNoRepos
	}
	series, err := LoadSeries(snapshot.NewFileStore(cfg.DataDir), cfg.Repos, cfg.Label, cfg.Since)
	if err != nil {
		return err
	}
	return outwriter.WriteSeries(series, cfg)
}

// ExecuteChart writes an HTML chart for the configured repositories, or for every
// stored repository when none is configured.
func ExecuteChart(_ context.Context, cfg *contract.Config, _ contract.StoreManager) error {
	store := snapshot.NewFileStore(cfg.DataDir)
	repos := cfg.Repos
	if len(repos) == 0 {
		stored, err := store.List()
		if err != nil {
			return fmt.Errorf("list stored repositories: %w", err)
		}
		if len(stored) == 0 {
			return fmt.Errorf("no stored timelines in %s (run update first)", cfg.DataDir)
		}
		repos = stored
	}

	series, err := LoadSeries(store, repos, cfg.Label, cfg.Since)
	if err != nil {
		return err
	}
	return outwriter.WriteChart(series, cfg.ChartFile)
}

// LoadSeries reads the stored documents of repos and derives their viewer series.
func LoadSeries(store contract.SnapshotStore, repos []schema.RepoID, label string, since time.Time) ([]schema.Series, error) {
	series := make([]schema.Series, 0, len(repos))
	for _, repo := range repos {
		doc, err := store.Load(repo)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", repo, err)
		}
		if doc == nil {
			return nil, fmt.Errorf("no stored timeline for %s (run update first)", repo)
		}
		series = append(series, SliceSince(SelectSeries(repo, *doc, label), since))
	}
	return series, nil
}
