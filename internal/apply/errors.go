// Package apply turns review diffs into commits: the per-change applier,
// the commit materializer, the per-diff applicator that walks candidate
// bases, and the revision sequencer with its resume and skip policy.
package apply

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scmtools/diffstack/internal/repo"
	"github.com/scmtools/diffstack/internal/review"
)

// PathPatchError is one per-path failure of a candidate attempt: a hunk
// mismatch or a violated existence precondition.
type PathPatchError struct {
	Path string
	Err  error
}

func (e *PathPatchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PathPatchError) Unwrap() error {
	return e.Err
}

// BadPatchError rejects one whole candidate attempt. It carries every
// failing path, not just the first, so a fatal report can show the
// complete picture of why the final candidate was rejected.
type BadPatchError struct {
	Candidate repo.CommitID
	Paths     []*PathPatchError
}

func (e *BadPatchError) Error() string {
	paths := make([]string, len(e.Paths))
	for i, p := range e.Paths {
		paths[i] = p.Path
	}

	sort.Strings(paths)

	return fmt.Sprintf("diff does not apply at %s: %d path(s) failed: %s",
		e.Candidate, len(e.Paths), strings.Join(paths, ", "))
}

// Detail renders the per-path failures, one per line.
func (e *BadPatchError) Detail() string {
	var b strings.Builder

	for _, p := range e.Paths {
		fmt.Fprintf(&b, "  %s\n", p.Error())
	}

	return b.String()
}

// UnsupportedChangeError reports a change kind the engine does not
// implement. It is fatal for the diff: no candidate base would help.
type UnsupportedChangeError struct {
	Kind review.ChangeKind
	Path string
}

func (e *UnsupportedChangeError) Error() string {
	return fmt.Sprintf("unsupported change kind %s for %s", e.Kind, e.Path)
}

// NoApplicableCommitError means the candidate sequence was exhausted
// without the diff applying cleanly anywhere. Last holds the failure
// from the final attempt for diagnostics.
type NoApplicableCommitError struct {
	DiffID review.DiffID
	Tried  int
	Last   *BadPatchError
}

func (e *NoApplicableCommitError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("no commit found where diff %d applies (no candidates)", e.DiffID)
	}

	return fmt.Sprintf("no commit found where diff %d applies (%d candidate(s) tried); last attempt: %v",
		e.DiffID, e.Tried, e.Last)
}

func (e *NoApplicableCommitError) Unwrap() error {
	if e.Last == nil {
		return nil
	}

	return e.Last
}
