// Package review defines the data model for code-review revisions and
// their diffs, and the sources that supply them.
package review

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// RevisionID identifies one code review.
type RevisionID int64

// DiffID identifies one diff within a revision.
type DiffID int64

// ChangeKind classifies a per-path change within a diff. The numeric
// values match the change type codes used on the wire by the review
// server, so decoding is a direct cast.
type ChangeKind int

// Change kinds.
const (
	ChangeAdd       ChangeKind = 1
	ChangeModify    ChangeKind = 2
	ChangeDelete    ChangeKind = 3
	ChangeMoveAway  ChangeKind = 4
	ChangeCopyAway  ChangeKind = 5
	ChangeMoveHere  ChangeKind = 6
	ChangeCopyHere  ChangeKind = 7
	ChangeMultiCopy ChangeKind = 8
	ChangeMessage   ChangeKind = 9
	ChangeChild     ChangeKind = 10
)

// String returns the wire name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeModify:
		return "modify"
	case ChangeDelete:
		return "delete"
	case ChangeMoveAway:
		return "move-away"
	case ChangeCopyAway:
		return "copy-away"
	case ChangeMoveHere:
		return "move-here"
	case ChangeCopyHere:
		return "copy-here"
	case ChangeMultiCopy:
		return "multi-copy"
	case ChangeMessage:
		return "message"
	case ChangeChild:
		return "child"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// LineKind classifies one line within a hunk.
type LineKind int

// Line kinds.
const (
	// LineContext must match the old file and is kept in the new file.
	LineContext LineKind = iota
	// LineRemoved must match the old file and is dropped from the new file.
	LineRemoved
	// LineAdded appears only in the new file.
	LineAdded
	// LineNoNewline is the "no newline at end of file" sentinel. It must be
	// the final line of its hunk and marks the output as having no
	// terminating newline.
	LineNoNewline
)

// Line is one tagged line of a hunk.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is a contiguous block of context/removed/added lines anchored at a
// one-based line offset into the old file. An offset of zero is only valid
// for files that did not previously exist.
type Hunk struct {
	OldOffset int
	Lines     []Line
}

// Change is one per-path change of a diff.
//
// Path conventions: Add and the *Here kinds set NewPath; Delete and
// MoveAway set OldPath; Modify sets both to the same path; MoveHere and
// CopyHere set both, with OldPath naming the source.
type Change struct {
	Kind    ChangeKind
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// Change validation errors.
var (
	ErrModifyPathMismatch = errors.New("modify change must keep the same path")
	ErrMissingPath        = errors.New("change is missing a required path")
	ErrSamePath           = errors.New("move/copy change requires distinct paths")
)

// Validate checks the structural invariants of the change's paths.
func (c *Change) Validate() error {
	switch c.Kind {
	case ChangeModify:
		if c.OldPath == "" || c.NewPath == "" || c.OldPath != c.NewPath {
			return fmt.Errorf("%w: old %q, new %q", ErrModifyPathMismatch, c.OldPath, c.NewPath)
		}
	case ChangeAdd:
		if c.NewPath == "" || c.OldPath != "" {
			return fmt.Errorf("%w: add wants only a new path", ErrMissingPath)
		}
	case ChangeDelete, ChangeMoveAway:
		if c.OldPath == "" || c.NewPath != "" {
			return fmt.Errorf("%w: %s wants only an old path", ErrMissingPath, c.Kind)
		}
	case ChangeMoveHere, ChangeCopyHere:
		if c.OldPath == "" || c.NewPath == "" {
			return fmt.Errorf("%w: %s wants both paths", ErrMissingPath, c.Kind)
		}

		if c.OldPath == c.NewPath {
			return fmt.Errorf("%w: %s %q", ErrSamePath, c.Kind, c.NewPath)
		}
	default:
		// Unsupported kinds carry whatever paths the server sent; the
		// applier rejects them explicitly.
	}

	return nil
}

// Path returns the most descriptive path for diagnostics.
func (c *Change) Path() string {
	if c.NewPath != "" {
		return c.NewPath
	}

	return c.OldPath
}

// Diff is one proposed set of file changes belonging to a revision.
type Diff struct {
	ID DiffID

	// BaseRevision is the revision string of the commit this diff was
	// computed against, as declared by the review server. May be empty
	// or name a foreign repository's revision scheme.
	BaseRevision string

	// SourceControlSystem tags the system BaseRevision belongs to
	// ("git", "hg", "svn", ...).
	SourceControlSystem string

	AuthorName  string
	AuthorEmail string
	Created     time.Time

	Changes []Change
}

// OldPaths returns the paths of all changes that had prior content,
// in change order without duplicates.
func (d *Diff) OldPaths() []string {
	var paths []string

	seen := make(map[string]struct{})

	for i := range d.Changes {
		p := d.Changes[i].OldPath
		if p == "" {
			continue
		}

		if _, dup := seen[p]; dup {
			continue
		}

		seen[p] = struct{}{}

		paths = append(paths, p)
	}

	return paths
}

// Revision is an ordered sequence of diffs representing the evolving
// state of one code review.
type Revision struct {
	ID       RevisionID
	Title    string
	Summary  string
	TestPlan string
	URI      string

	Diffs []*Diff
}

// SortDiffs orders the revision's diffs by ascending diff id. Diffs are
// always applied oldest to newest regardless of wire order.
func (r *Revision) SortDiffs() {
	sort.Slice(r.Diffs, func(i, j int) bool {
		return r.Diffs[i].ID < r.Diffs[j].ID
	})
}

// ActiveDiff returns the most recent diff of the revision.
func (r *Revision) ActiveDiff() (*Diff, error) {
	if len(r.Diffs) == 0 {
		return nil, fmt.Errorf("revision %d has no diffs", r.ID)
	}

	return r.Diffs[len(r.Diffs)-1], nil
}
