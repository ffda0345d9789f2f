package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scmtools/diffstack/internal/mapping"
	"github.com/scmtools/diffstack/internal/observability"
	"github.com/scmtools/diffstack/internal/repo"
	"github.com/scmtools/diffstack/internal/review"
)

// Result reports one sequenced revision: the commit for every applied
// diff (from this run or resumed from the mapping) and the diffs this
// run gave up on.
type Result struct {
	Revision review.RevisionID
	Commits  map[review.DiffID]repo.CommitID
	Skipped  []review.DiffID

	// Applied lists the diffs materialized by this run, in order.
	Applied []review.DiffID
}

// Sequencer drives the applicator across all diffs of a revision in
// ascending id order, resuming from the mapping store and recording each
// success back into it.
//
// Not safe for concurrent use; all work is synchronous per revision.
type Sequencer struct {
	source     review.Source
	store      *mapping.Store
	applicator *Applicator
	metrics    *observability.ApplyMetrics
	log        *slog.Logger

	// memo guards against dependency cycles between revisions. A nil
	// entry marks a revision currently being processed.
	memo map[review.RevisionID]*Result
}

// NewSequencer wires a sequencer. metrics and log may be nil.
func NewSequencer(source review.Source, store *mapping.Store, applicator *Applicator, metrics *observability.ApplyMetrics, log *slog.Logger) *Sequencer {
	if metrics == nil {
		metrics = observability.NoopApplyMetrics()
	}

	if log == nil {
		log = slog.Default()
	}

	return &Sequencer{
		source:     source,
		store:      store,
		applicator: applicator,
		metrics:    metrics,
		log:        log,
		memo:       make(map[review.RevisionID]*Result),
	}
}

// ApplyRevision applies every unapplied diff of the revision.
//
// Diffs already covered by a contiguous mapped prefix are not re-applied.
// A diff that fails with [NoApplicableCommitError] is skipped and the
// chain anchor stays on the last success, unless it is the revision's
// final diff, which makes the failure fatal. A revision already being
// processed (reached again through a dependency cycle) returns an empty
// result immediately.
func (s *Sequencer) ApplyRevision(ctx context.Context, id review.RevisionID) (*Result, error) {
	if cached, seen := s.memo[id]; seen {
		if cached == nil {
			// In progress further up the stack; break the cycle.
			return &Result{Revision: id, Commits: map[review.DiffID]repo.CommitID{}}, nil
		}

		return cached, nil
	}

	s.memo[id] = nil

	result, err := s.applyRevision(ctx, id)
	if err != nil {
		delete(s.memo, id)

		return nil, err
	}

	s.memo[id] = result

	return result, nil
}

func (s *Sequencer) applyRevision(ctx context.Context, id review.RevisionID) (*Result, error) {
	rev, err := s.source.GetRevision(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch revision %d: %w", id, err)
	}

	rev.SortDiffs()

	mapped, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Revision: id,
		Commits:  make(map[review.DiffID]repo.CommitID),
	}

	// Resume from the longest contiguous mapped prefix. Stale mappings
	// past the first gap are ignored and those diffs re-attempted.
	var anchor repo.CommitID

	start := 0

	for start < len(rev.Diffs) {
		commit, ok := mapped[rev.Diffs[start].ID]
		if !ok {
			break
		}

		result.Commits[rev.Diffs[start].ID] = commit
		anchor = commit
		start++
	}

	if start > 0 {
		s.log.Info("resuming revision", "revision", id,
			"already_applied", start, "anchor", anchor)
	}

	for i := start; i < len(rev.Diffs); i++ {
		diff := rev.Diffs[i]
		began := time.Now()

		commit, err := s.applicator.ApplyDiff(ctx, rev, diff, anchor)
		if err == nil {
			if recErr := s.store.Record(diff.ID, commit); recErr != nil {
				return nil, recErr
			}

			result.Commits[diff.ID] = commit
			result.Applied = append(result.Applied, diff.ID)
			anchor = commit

			s.metrics.RecordDiff(ctx, observability.StatusApplied, time.Since(began))
			s.log.Info("applied diff", "revision", id, "diff", diff.ID, "commit", commit)

			continue
		}

		var noCommit *NoApplicableCommitError

		lastDiff := i == len(rev.Diffs)-1

		if !errors.As(err, &noCommit) || lastDiff {
			s.metrics.RecordDiff(ctx, observability.StatusFailed, time.Since(began))

			return nil, fmt.Errorf("revision %d, diff %d: %w", id, diff.ID, err)
		}

		// Skip and continue; the next diff chains against the last
		// successful commit, not anything derived from this one.
		result.Skipped = append(result.Skipped, diff.ID)

		s.metrics.RecordDiff(ctx, observability.StatusSkipped, time.Since(began))
		s.log.Warn("skipping diff", "revision", id, "diff", diff.ID, "err", err)
	}

	return result, nil
}
