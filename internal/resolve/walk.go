package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/scmtools/diffstack/internal/repo"
)

// pathCursor walks ancestors of one head, surfacing only commits that
// touched one path. current is the next unconsumed candidate.
type pathCursor struct {
	iter    repo.AncestorIter
	path    string
	current repo.CommitID
	when    time.Time
}

// mergedWalk merges per-(head, path) ancestor cursors into one globally
// deduplicated stream, most recent commit first. Each step advances only
// the cursor whose candidate was consumed, so unrelated histories are
// walked no deeper than the candidates actually requested.
type mergedWalk struct {
	repo    repo.Repository
	heap    *binaryheap.Heap
	seen    map[repo.CommitID]struct{}
	cursors []*pathCursor
}

// newMergedWalk opens one cursor per (head, path) pair and primes each to
// its first candidate. Cursors that yield nothing are closed immediately.
// seen is shared with the caller: commits already produced by earlier
// stages are skipped, and candidates surfaced here are claimed as soon as
// a cursor reaches them.
func newMergedWalk(ctx context.Context, r repo.Repository, paths []string, seen map[repo.CommitID]struct{}) (*mergedWalk, error) {
	heads, err := r.Heads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list heads: %w", err)
	}

	w := &mergedWalk{
		repo: r,
		heap: binaryheap.NewWith(byRecency),
		seen: seen,
	}

	for _, head := range heads {
		for _, path := range paths {
			iter, err := r.Ancestors(ctx, head)
			if err != nil {
				w.Close()

				return nil, fmt.Errorf("ancestors of %s: %w", head, err)
			}

			cur := &pathCursor{iter: iter, path: path}
			w.cursors = append(w.cursors, cur)

			ok, err := w.advance(ctx, cur)
			if err != nil {
				w.Close()

				return nil, err
			}

			if ok {
				w.heap.Push(cur)
			}
		}
	}

	return w, nil
}

// Next pops the most recent candidate across all cursors and advances the
// cursor it came from. Returns [io.EOF] once every cursor is exhausted.
func (w *mergedWalk) Next(ctx context.Context) (repo.CommitID, error) {
	top, ok := w.heap.Pop()
	if !ok {
		return "", io.EOF
	}

	cur := top.(*pathCursor)
	id := cur.current

	more, err := w.advance(ctx, cur)
	if err != nil {
		return "", err
	}

	if more {
		w.heap.Push(cur)
	}

	return id, nil
}

// Close releases every underlying ancestor iterator.
func (w *mergedWalk) Close() {
	for _, cur := range w.cursors {
		if cur.iter != nil {
			cur.iter.Close()
			cur.iter = nil
		}
	}

	w.cursors = nil
	w.heap.Clear()
}

// advance moves the cursor to its next candidate: the next ancestor that
// touched the cursor's path and has not been claimed yet. The candidate is
// claimed here, at discovery, so overlapping cursors never race to emit
// the same commit.
func (w *mergedWalk) advance(ctx context.Context, cur *pathCursor) (bool, error) {
	for {
		anc, err := cur.iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return false, nil
		}

		if err != nil {
			return false, err
		}

		touched, err := w.repo.TouchedPath(ctx, anc.ID, cur.path)
		if err != nil {
			return false, fmt.Errorf("touched %s at %s: %w", cur.path, anc.ID, err)
		}

		if !touched {
			continue
		}

		if _, dup := w.seen[anc.ID]; dup {
			continue
		}

		w.seen[anc.ID] = struct{}{}
		cur.current = anc.ID
		cur.when = anc.When

		return true, nil
	}
}

// byRecency orders cursors so the one holding the most recent candidate
// pops first; ties break on commit id for determinism.
func byRecency(a, b interface{}) int {
	ca := a.(*pathCursor)
	cb := b.(*pathCursor)

	switch {
	case ca.when.After(cb.when):
		return -1
	case cb.when.After(ca.when):
		return 1
	case ca.current < cb.current:
		return -1
	case ca.current > cb.current:
		return 1
	default:
		return 0
	}
}
