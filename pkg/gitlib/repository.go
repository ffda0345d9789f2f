package gitlib

import (
	"context"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNotFound is returned when a reference, commit, or path does not exist.
var ErrNotFound = errors.New("not found")

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// GitDir returns the path of the repository's .git directory.
func (r *Repository) GitDir() string {
	return r.repo.Path()
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// ResolveRev resolves a revision spec (hash, ref name, branch, tag) to the
// commit it names. Returns [ErrNotFound] if the spec does not resolve.
func (r *Repository) ResolveRev(spec string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(spec)
	if err != nil {
		return Hash{}, notFoundOr(err, fmt.Sprintf("resolve %q", spec))
	}
	defer obj.Free()

	commit, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, notFoundOr(err, fmt.Sprintf("peel %q to commit", spec))
	}
	defer commit.Free()

	return HashFromOid(commit.Id()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(_ context.Context, hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, notFoundOr(err, "lookup commit")
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(_ context.Context, hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, notFoundOr(err, "lookup blob")
	}

	return &Blob{blob: blob}, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, notFoundOr(err, "lookup tree")
	}

	return &Tree{tree: tree, repo: r}, nil
}

// LocalBranchTips returns the commit each local branch points at.
func (r *Repository) LocalBranchTips() ([]Hash, error) {
	iter, err := r.repo.NewBranchIterator(git2go.BranchLocal)
	if err != nil {
		return nil, fmt.Errorf("list local branches: %w", err)
	}
	defer iter.Free()

	var tips []Hash

	err = iter.ForEach(func(branch *git2go.Branch, _ git2go.BranchType) error {
		target := branch.Target()
		if target != nil {
			tips = append(tips, HashFromOid(target))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate local branches: %w", err)
	}

	return tips, nil
}

// WalkFrom creates a revision walker starting from the given commit,
// sorted by commit time, newest first.
func (r *Repository) WalkFrom(start Hash) (*RevWalk, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	walk.Sorting(git2go.SortTime)

	err = walk.Push(start.ToOid())
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push %s to revwalk: %w", start, err)
	}

	return &RevWalk{walk: walk, repo: r}, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}

// notFoundOr maps libgit2 not-found errors to [ErrNotFound] and wraps
// everything else with the given operation name.
func notFoundOr(err error, op string) error {
	var gitErr *git2go.GitError
	if errors.As(err, &gitErr) && gitErr.Code == git2go.ErrorCodeNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, err)
}
