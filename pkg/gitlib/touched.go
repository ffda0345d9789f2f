package gitlib

import (
	"context"
	"errors"
)

// TouchedPath reports whether the commit changed the blob at path relative
// to its first parent. A root commit touches every path it contains. Merge
// commits are compared against the first parent only, matching first-parent
// history walks.
func (r *Repository) TouchedPath(ctx context.Context, commit Hash, path string) (bool, error) {
	c, err := r.LookupCommit(ctx, commit)
	if err != nil {
		return false, err
	}
	defer c.Free()

	entryHash, present, err := r.entryHashAt(c, path)
	if err != nil {
		return false, err
	}

	if c.NumParents() == 0 {
		return present, nil
	}

	parent, err := c.Parent(0)
	if err != nil {
		return false, err
	}
	defer parent.Free()

	parentHash, parentPresent, err := r.entryHashAt(parent, path)
	if err != nil {
		return false, err
	}

	if present != parentPresent {
		return true, nil
	}

	return present && entryHash != parentHash, nil
}

func (r *Repository) entryHashAt(c *Commit, path string) (Hash, bool, error) {
	tree, err := c.Tree()
	if err != nil {
		return Hash{}, false, err
	}
	defer tree.Free()

	entry, err := tree.EntryByPath(path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Hash{}, false, nil
		}

		return Hash{}, false, err
	}

	return entry.Hash(), true, nil
}
