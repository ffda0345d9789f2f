package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// FileWrite describes one path in a commit being built. A nil Content with
// Delete set removes the path; otherwise Content becomes the new blob.
type FileWrite struct {
	Path    string
	Content []byte
	Delete  bool
}

// CreateCommit writes a new commit whose tree is the tree of base with the
// given file writes applied on top. The commit is not attached to any ref.
// Returns the hash of the new commit.
func (r *Repository) CreateCommit(
	ctx context.Context,
	base Hash,
	writes []FileWrite,
	parents []Hash,
	author Signature,
	message string,
) (Hash, error) {
	baseCommit, err := r.LookupCommit(ctx, base)
	if err != nil {
		return Hash{}, err
	}
	defer baseCommit.Free()

	baseTree, err := baseCommit.Tree()
	if err != nil {
		return Hash{}, err
	}
	defer baseTree.Free()

	treeOid, err := r.writeTree(baseTree, writes)
	if err != nil {
		return Hash{}, err
	}

	sig := &git2go.Signature{
		Name:  author.Name,
		Email: author.Email,
		When:  author.When,
	}

	parentOids := make([]*git2go.Oid, len(parents))
	for i, p := range parents {
		parentOids[i] = p.ToOid()
	}

	commitOid, err := r.repo.CreateCommitFromIds("", sig, sig, message, treeOid, parentOids...)
	if err != nil {
		return Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return HashFromOid(commitOid), nil
}

// writeTree builds the new tree through an in-memory index seeded from the
// base tree, so nested directories are handled by libgit2.
func (r *Repository) writeTree(baseTree *Tree, writes []FileWrite) (*git2go.Oid, error) {
	idx, err := git2go.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("create in-memory index: %w", err)
	}
	defer idx.Free()

	err = idx.ReadTree(baseTree.Native())
	if err != nil {
		return nil, fmt.Errorf("seed index from base tree: %w", err)
	}

	for _, w := range writes {
		if w.Delete {
			removeErr := idx.RemoveByPath(w.Path)
			if removeErr != nil {
				return nil, fmt.Errorf("remove %q from index: %w", w.Path, removeErr)
			}

			continue
		}

		blobOid, blobErr := r.repo.CreateBlobFromBuffer(w.Content)
		if blobErr != nil {
			return nil, fmt.Errorf("write blob for %q: %w", w.Path, blobErr)
		}

		addErr := idx.Add(&git2go.IndexEntry{
			Mode: git2go.FilemodeBlob,
			Id:   blobOid,
			Path: w.Path,
			Size: uint32(len(w.Content)),
		})
		if addErr != nil {
			return nil, fmt.Errorf("add %q to index: %w", w.Path, addErr)
		}
	}

	treeOid, err := idx.WriteTreeTo(r.repo)
	if err != nil {
		return nil, fmt.Errorf("write tree: %w", err)
	}

	return treeOid, nil
}
