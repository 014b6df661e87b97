package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/metrics"
	"github.com/huangsam/issuetrend/schema"
)

// Updater runs the fetch, reconstruct, merge and persist cycle for repositories.
// Runs and Metrics are optional.
type Updater struct {
	Source  contract.EventSource
	Store   contract.SnapshotStore
	Runs    contract.RunStore
	Metrics metrics.Recorder
	Workers int
	Rebuild bool // Recompute from scratch, quarantining unreadable documents
	Now     func() time.Time
}

// UpdateAll processes repositories with a pool of u.Workers goroutines.
// Results come back in input order. One failing repository never stops the others.
func (u *Updater) UpdateAll(ctx context.Context, repos []schema.RepoID) []schema.UpdateResult {
	results := make([]schema.UpdateResult, len(repos))
	workers := max(1, min(u.Workers, len(repos)))

	jobCh := make(chan int, len(repos))
	var wg sync.WaitGroup

	// Start worker pool
	for range workers {
		wg.Go(func() {
			for idx := range jobCh {
				// Each worker writes to a unique index, which is safe
				results[idx] = u.UpdateRepo(ctx, repos[idx])
			}
		})
	}

	for i := range repos {
		jobCh <- i
	}
	close(jobCh)
	wg.Wait()

	return results
}

// UpdateRepo runs one full cycle for a repository. The stored document is only
// replaced when every step succeeds.
func (u *Updater) UpdateRepo(ctx context.Context, repo schema.RepoID) schema.UpdateResult {
	start := u.now()
	logger := contract.Logger(ctx).With().Str("repo", repo.String()).Logger()
	ctx = logger.WithContext(ctx)

	var runID int64
	if u.Runs != nil {
		id, err := u.Runs.BeginRun(repo, start)
		if err != nil {
			logger.Warn().Err(err).Msg("Run tracking initialization failed")
		} else {
			runID = id
		}
	}

	summary, err := u.runPipeline(ctx, repo)
	end := u.now()
	if err != nil {
		summary.Outcome = schema.RunFailed
		summary.ErrorKind = schema.ClassifyError(err)
		summary.Message = err.Error()
		logger.Error().Err(err).Str("error_kind", string(summary.ErrorKind)).Msg("Update failed")
	} else {
		summary.Outcome = schema.RunSucceeded
		logger.Info().Int("events", summary.Events).Int("days", summary.Days).Int("labels", summary.Labels).Msg("Update succeeded")
	}

	if u.Runs != nil && runID > 0 {
		if endErr := u.Runs.EndRun(runID, end, summary); endErr != nil {
			logger.Warn().Err(endErr).Msg("Failed to finalize run tracking")
		}
	}
	if u.Metrics != nil {
		u.Metrics.ObserveUpdate(repo, summary.Outcome, summary.ErrorKind, end.Sub(start))
	}

	return schema.UpdateResult{Repo: repo, Summary: summary, Duration: end.Sub(start), Err: err}
}

// runPipeline performs the steps of one update and fills in the counters it observed.
func (u *Updater) runPipeline(ctx context.Context, repo schema.RepoID) (schema.RunSummary, error) {
	var summary schema.RunSummary
	logger := contract.Logger(ctx)

	// --- 1. Load the stored document ---
	prev, err := u.Store.Load(repo)
	if err != nil {
		if !u.Rebuild || !errors.Is(err, schema.ErrDataCorruption) {
			return summary, fmt.Errorf("load snapshot: %w", err)
		}
		moved, qErr := u.Store.Quarantine(repo)
		if qErr != nil {
			return summary, fmt.Errorf("quarantine snapshot: %w", qErr)
		}
		logger.Warn().Err(err).Str("quarantined", moved).Msg("Moved unreadable document aside")
	}
	if u.Rebuild {
		prev = nil
	}

	// --- 2. Fetch the event history ---
	events, err := u.Source.FetchEvents(ctx, repo)
	if err != nil {
		return summary, fmt.Errorf("fetch events: %w", err)
	}
	summary.Events = len(events)

	// --- 3. Rebuild item histories and the timeline ---
	items, err := BuildItems(repo, events)
	if err != nil {
		return summary, err
	}
	summary.Items = len(items)

	now := u.now().UTC()
	fresh := schema.PersistedTimeline{
		Labels:   CollectLabels(items),
		Timeline: Reconstruct(items, now),
	}

	// --- 4. Merge with the immutable prefix ---
	merged, err := Merge(prev, fresh, schema.FormatDay(now))
	if err != nil {
		return summary, fmt.Errorf("merge timeline: %w", err)
	}

	// --- 5. Persist ---
	if err := u.Store.Save(repo, merged); err != nil {
		return summary, fmt.Errorf("save snapshot: %w", err)
	}
	summary.Days = len(merged.Timeline)
	summary.Labels = len(merged.Labels)

	if u.Metrics != nil && len(merged.Timeline) > 0 {
		u.Metrics.SetSnapshot(repo, merged.Timeline[len(merged.Timeline)-1], summary.Days)
	}
	return summary, nil
}

func (u *Updater) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

// JoinFailures combines the errors of all failed repositories, or returns nil.
func JoinFailures(results []schema.UpdateResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Repo, r.Err))
		}
	}
	return errors.Join(errs...)
}
