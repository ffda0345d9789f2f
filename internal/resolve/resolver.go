// Package resolve produces the ordered sequence of candidate base commits
// a diff is tried against: the declared base first, then heuristics over
// the repository's history.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"

	"github.com/scmtools/diffstack/internal/repo"
	"github.com/scmtools/diffstack/internal/review"
)

// svnRevPattern matches subversion-style base revision strings that some
// bridged repositories report even when the source control system tag says
// git or hg.
var svnRevPattern = regexp.MustCompile(`^svn\+ssh://.*@([0-9]+)$`)

// Resolver builds candidate iterators against one repository.
type Resolver struct {
	repo           repo.Repository
	integrationRef string
	log            *slog.Logger
}

// New creates a resolver. integrationRef names the integration branch used
// as the last-resort candidate for diffs that only add files.
func New(r repo.Repository, integrationRef string, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}

	return &Resolver{repo: r, integrationRef: integrationRef, log: log}
}

// Candidates returns the candidate commits for the diff, most promising
// first. chainHead is the commit produced for the previous diff of the
// same revision, or empty. The iterator is lazy, finite, deduplicated,
// and not restartable; Close it if abandoned before exhaustion.
func (r *Resolver) Candidates(diff *review.Diff, chainHead repo.CommitID) *Iter {
	return &Iter{
		resolver:  r,
		diff:      diff,
		chainHead: chainHead,
		seen:      make(map[repo.CommitID]struct{}),
	}
}

// Iterator stages, tried in order.
const (
	stageExplicitBase = iota
	stagePrevApplied
	stagePathHistory
	stageWalk
	stageIntegrationTip
	stageDone
)

// Iter is a lazy candidate sequence. See [Resolver.Candidates].
type Iter struct {
	resolver  *Resolver
	diff      *review.Diff
	chainHead repo.CommitID

	stage int
	seen  map[repo.CommitID]struct{}

	// queue holds the remaining fast-path candidates once stagePathHistory
	// has materialized them.
	queue []repo.CommitID

	// walk is the merged ancestor walk backing stageWalk.
	walk *mergedWalk
}

// Next returns the next candidate, or [io.EOF] when the sequence is
// exhausted. Backend failures other than not-found are returned as-is.
func (it *Iter) Next(ctx context.Context) (repo.CommitID, error) {
	for {
		switch it.stage {
		case stageExplicitBase:
			it.stage = stagePrevApplied

			id, ok, err := it.explicitBase(ctx)
			if err != nil {
				return "", err
			}

			if ok && it.mark(id) {
				return id, nil
			}

		case stagePrevApplied:
			it.stage = stagePathHistory

			id, ok, err := it.prevAppliedOnto(ctx)
			if err != nil {
				return "", err
			}

			if ok && it.mark(id) {
				return id, nil
			}

		case stagePathHistory:
			err := it.startPathStage(ctx)
			if err != nil {
				return "", err
			}

		case stageWalk:
			if it.walk == nil {
				it.stage = stageDone

				continue
			}

			id, err := it.walk.Next(ctx)
			if errors.Is(err, io.EOF) {
				it.stage = stageDone

				continue
			}

			if err != nil {
				return "", err
			}

			return id, nil

		case stageIntegrationTip:
			it.stage = stageDone

			id, err := it.resolver.repo.Lookup(ctx, it.resolver.integrationRef)
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}

			if err != nil {
				return "", err
			}

			if it.mark(id) {
				return id, nil
			}

		default:
			// Drain queued fast-path candidates before finishing.
			for len(it.queue) > 0 {
				id := it.queue[0]
				it.queue = it.queue[1:]

				if it.mark(id) {
					return id, nil
				}
			}

			return "", io.EOF
		}
	}
}

// Close releases any open ancestry walks. Safe to call at any point.
func (it *Iter) Close() {
	if it.walk != nil {
		it.walk.Close()
		it.walk = nil
	}

	it.stage = stageDone
}

// mark records the candidate as produced; false means it was already seen.
func (it *Iter) mark(id repo.CommitID) bool {
	if _, dup := it.seen[id]; dup {
		return false
	}

	it.seen[id] = struct{}{}

	return true
}

// explicitBase resolves the diff's declared base revision, if any. A base
// that cannot be resolved locally is not fatal: resolution falls through
// to the heuristic stages.
func (it *Iter) explicitBase(ctx context.Context) (repo.CommitID, bool, error) {
	ref := translateBase(it.diff)
	if ref == "" {
		return "", false, nil
	}

	id, err := it.resolver.repo.Lookup(ctx, ref)
	if errors.Is(err, repo.ErrNotFound) {
		it.resolver.log.Debug("declared base not found locally",
			"diff", it.diff.ID, "base", ref)

		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	it.resolver.log.Debug("resolved declared base",
		"diff", it.diff.ID, "base", ref, "commit", id)

	return id, true, nil
}

// prevAppliedOnto yields the commit the previous diff of this revision was
// applied onto: the first parent of the chain head. The best continuity
// guess when a diff follows an already-applied one.
func (it *Iter) prevAppliedOnto(ctx context.Context) (repo.CommitID, bool, error) {
	if it.chainHead == "" {
		return "", false, nil
	}

	parents, err := it.resolver.repo.Parents(ctx, it.chainHead)
	if err != nil {
		return "", false, err
	}

	if len(parents) == 0 {
		return "", false, nil
	}

	return parents[0], true, nil
}

// startPathStage picks between the direct per-path history index and the
// merged ancestor walk, or skips straight to the integration tip when the
// diff only adds files.
func (it *Iter) startPathStage(ctx context.Context) error {
	paths := it.diff.OldPaths()
	if len(paths) == 0 {
		it.stage = stageIntegrationTip

		return nil
	}

	history, err := it.gatherHistory(ctx, paths)
	if errors.Is(err, repo.ErrNoHistoryIndex) {
		walk, walkErr := newMergedWalk(ctx, it.resolver.repo, paths, it.seen)
		if walkErr != nil {
			return walkErr
		}

		it.walk = walk
		it.stage = stageWalk

		return nil
	}

	if err != nil {
		return err
	}

	it.queue = history
	it.stage = stageDone

	return nil
}

// gatherHistory unions the per-path history index across paths and orders
// the result by descending commit time.
func (it *Iter) gatherHistory(ctx context.Context, paths []string) ([]repo.CommitID, error) {
	union := make(map[repo.CommitID]struct{})

	for _, path := range paths {
		ids, err := it.resolver.repo.HistoryOf(ctx, path)
		if err != nil {
			return nil, err
		}

		for _, id := range ids {
			union[id] = struct{}{}
		}
	}

	type dated struct {
		id   repo.CommitID
		when int64
	}

	all := make([]dated, 0, len(union))

	for id := range union {
		when, err := it.resolver.repo.CommitTime(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("commit time of %s: %w", id, err)
		}

		all = append(all, dated{id: id, when: when.UnixNano()})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].when != all[j].when {
			return all[i].when > all[j].when
		}

		return all[i].id < all[j].id
	})

	out := make([]repo.CommitID, len(all))
	for i, d := range all {
		out[i] = d.id
	}

	return out, nil
}

// translateBase turns the diff's declared base revision into a reference
// the backend can resolve, or empty when no local translation exists.
// Subversion-style revision strings appear even in git/hg-tagged diffs
// when the source repository is bridged, so they are checked first.
func translateBase(diff *review.Diff) string {
	base := diff.BaseRevision
	if base == "" {
		return ""
	}

	if m := svnRevPattern.FindStringSubmatch(base); m != nil {
		return "r" + m[1]
	}

	switch diff.SourceControlSystem {
	case "git":
		return base
	default:
		// Foreign revision schemes (e.g. raw hg changesets) have no local
		// mapping; heuristic stages take over.
		return ""
	}
}
