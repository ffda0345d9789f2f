package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/scmtools/diffstack/pkg/gitlib"
)

// Git adapts a [gitlib.Repository] to the engine's [Repository] surface.
type Git struct {
	repo *gitlib.Repository

	// integrationRef names the main integration branch whose tip leads the
	// head set, e.g. "origin/master".
	integrationRef string
}

// NewGit wraps an open git repository. integrationRef names the main
// integration branch.
func NewGit(repo *gitlib.Repository, integrationRef string) *Git {
	return &Git{repo: repo, integrationRef: integrationRef}
}

// Lookup resolves a revision spec to a commit id.
func (g *Git) Lookup(_ context.Context, ref string) (CommitID, error) {
	hash, err := g.repo.ResolveRev(ref)
	if err != nil {
		return "", translateNotFound(err)
	}

	return CommitID(hash.String()), nil
}

// Parents returns the commit's parents, first parent first.
func (g *Git) Parents(ctx context.Context, id CommitID) ([]CommitID, error) {
	commit, err := g.repo.LookupCommit(ctx, gitlib.NewHash(string(id)))
	if err != nil {
		return nil, translateNotFound(err)
	}
	defer commit.Free()

	hashes := commit.ParentHashes()

	parents := make([]CommitID, len(hashes))
	for i, h := range hashes {
		parents[i] = CommitID(h.String())
	}

	return parents, nil
}

// CommitTime returns the committer timestamp.
func (g *Git) CommitTime(ctx context.Context, id CommitID) (time.Time, error) {
	commit, err := g.repo.LookupCommit(ctx, gitlib.NewHash(string(id)))
	if err != nil {
		return time.Time{}, translateNotFound(err)
	}
	defer commit.Free()

	return commit.Committer().When, nil
}

// ReadBlob returns the contents of path at the commit.
func (g *Git) ReadBlob(ctx context.Context, id CommitID, path string) ([]byte, error) {
	commit, err := g.repo.LookupCommit(ctx, gitlib.NewHash(string(id)))
	if err != nil {
		return nil, translateNotFound(err)
	}
	defer commit.Free()

	data, err := commit.BlobBytes(path)
	if err != nil {
		return nil, translateNotFound(err)
	}

	if data == nil {
		data = []byte{}
	}

	return data, nil
}

// Ancestors walks the commit's ancestry, newest first.
func (g *Git) Ancestors(_ context.Context, id CommitID) (AncestorIter, error) {
	walk, err := g.repo.WalkFrom(gitlib.NewHash(string(id)))
	if err != nil {
		return nil, translateNotFound(err)
	}

	return &gitAncestorIter{git: g, walk: walk}, nil
}

// TouchedPath reports whether the commit changed path vs its first parent.
func (g *Git) TouchedPath(ctx context.Context, id CommitID, path string) (bool, error) {
	return g.repo.TouchedPath(ctx, gitlib.NewHash(string(id)), path)
}

// HistoryOf is unavailable: git keeps no per-path history index, so the
// resolver falls back to the merged ancestor walk.
func (g *Git) HistoryOf(_ context.Context, _ string) ([]CommitID, error) {
	return nil, ErrNoHistoryIndex
}

// Heads returns the integration branch tip followed by local branch tips.
func (g *Git) Heads(ctx context.Context) ([]CommitID, error) {
	var heads []CommitID

	seen := make(map[CommitID]struct{})

	tip, err := g.Lookup(ctx, g.integrationRef)
	if err == nil {
		heads = append(heads, tip)
		seen[tip] = struct{}{}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	locals, err := g.repo.LocalBranchTips()
	if err != nil {
		return nil, err
	}

	for _, h := range locals {
		id := CommitID(h.String())
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}

		heads = append(heads, id)
	}

	return heads, nil
}

// CreateCommit writes a commit whose tree is the base tree with the
// request's file states applied.
func (g *Git) CreateCommit(ctx context.Context, req CommitRequest) (CommitID, error) {
	writes := make([]gitlib.FileWrite, 0, len(req.Files))

	// Copy/rename provenance is not persisted: git detects renames from
	// content at diff time rather than recording them in the commit.
	for path, state := range req.Files {
		writes = append(writes, gitlib.FileWrite{
			Path:    path,
			Content: state.Content,
			Delete:  state.Absent,
		})
	}

	parents := make([]gitlib.Hash, len(req.Parents))
	for i, p := range req.Parents {
		parents[i] = gitlib.NewHash(string(p))
	}

	author := gitlib.Signature{
		Name:  req.AuthorName,
		Email: req.AuthorEmail,
		When:  req.When,
	}

	hash, err := g.repo.CreateCommit(ctx, gitlib.NewHash(string(req.Base)), writes, parents, author, req.Message)
	if err != nil {
		return "", fmt.Errorf("materialize commit: %w", err)
	}

	return CommitID(hash.String()), nil
}

// gitAncestorIter adapts a gitlib revwalk to [AncestorIter].
type gitAncestorIter struct {
	git  *Git
	walk *gitlib.RevWalk
}

func (it *gitAncestorIter) Next(ctx context.Context) (Ancestor, error) {
	hash, err := it.walk.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Ancestor{}, io.EOF
		}

		return Ancestor{}, err
	}

	id := CommitID(hash.String())

	when, err := it.git.CommitTime(ctx, id)
	if err != nil {
		return Ancestor{}, err
	}

	return Ancestor{ID: id, When: when}, nil
}

func (it *gitAncestorIter) Close() {
	it.walk.Free()
}

// translateNotFound maps gitlib's not-found error class onto the backend's.
func translateNotFound(err error) error {
	if errors.Is(err, gitlib.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
