package apply

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/scmtools/diffstack/internal/observability"
	"github.com/scmtools/diffstack/internal/repo"
	"github.com/scmtools/diffstack/internal/resolve"
	"github.com/scmtools/diffstack/internal/review"
)

// Applicator applies one diff by trying candidate base commits in
// resolver order until one accepts the whole change set.
type Applicator struct {
	repo     repo.Repository
	resolver *resolve.Resolver
	metrics  *observability.ApplyMetrics
	log      *slog.Logger

	// maxCandidates caps the search; zero means unbounded.
	maxCandidates int
}

// NewApplicator wires an applicator. metrics and log may be nil.
func NewApplicator(r repo.Repository, resolver *resolve.Resolver, metrics *observability.ApplyMetrics, log *slog.Logger, maxCandidates int) *Applicator {
	if metrics == nil {
		metrics = observability.NoopApplyMetrics()
	}

	if log == nil {
		log = slog.Default()
	}

	return &Applicator{
		repo:          r,
		resolver:      resolver,
		metrics:       metrics,
		log:           log,
		maxCandidates: maxCandidates,
	}
}

// ApplyDiff materializes one diff of the revision as a commit.
//
// Candidates are consumed strictly in resolver order; a patch failure
// rejects only the current candidate, while unsupported changes and
// backend failures abort the whole diff. Exhausting the sequence returns
// a [NoApplicableCommitError] carrying the final attempt's diagnostics.
func (a *Applicator) ApplyDiff(ctx context.Context, rev *review.Revision, diff *review.Diff, chainParent repo.CommitID) (repo.CommitID, error) {
	iter := a.resolver.Candidates(diff, chainParent)
	defer iter.Close()

	tried := 0

	var last *BadPatchError

	for {
		if a.maxCandidates > 0 && tried >= a.maxCandidates {
			a.log.Debug("candidate cap reached", "diff", diff.ID, "tried", tried)

			break
		}

		candidate, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", err
		}

		tried++
		a.metrics.RecordCandidate(ctx)

		files, err := ApplyChanges(ctx, a.repo, candidate, diff.Changes)

		var bad *BadPatchError

		switch {
		case err == nil:
			a.log.Debug("diff applies", "diff", diff.ID, "candidate", candidate, "tried", tried)

			return Materialize(ctx, a.repo, candidate, files, CommitMeta{
				AuthorName:  diff.AuthorName,
				AuthorEmail: diff.AuthorEmail,
				When:        diff.Created,
				Message:     CommitMessage(rev, diff),
				ChainParent: chainParent,
			})

		case errors.As(err, &bad):
			a.metrics.RecordMismatch(ctx)
			a.log.Debug("candidate rejected", "diff", diff.ID, "candidate", candidate, "err", err)

			last = bad

		default:
			// Unsupported change or backend failure; no candidate helps.
			return "", err
		}
	}

	return "", &NoApplicableCommitError{DiffID: diff.ID, Tried: tried, Last: last}
}
