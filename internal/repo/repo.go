// Package repo defines the capability surface the apply engine needs from
// a version-control backend, and its git and in-memory implementations.
package repo

import (
	"context"
	"errors"
	"time"
)

// CommitID identifies a commit, as a lowercase hex string.
type CommitID string

// Backend errors.
var (
	// ErrNotFound is returned by Lookup and ReadBlob when the reference,
	// commit, or path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoHistoryIndex is returned by HistoryOf when the backend has no
	// direct per-path history index and callers must fall back to walking
	// ancestors.
	ErrNoHistoryIndex = errors.New("backend has no per-path history index")
)

// Ancestor is one step of an ancestry walk.
type Ancestor struct {
	ID   CommitID
	When time.Time
}

// AncestorIter is a single-pass iterator over a commit's ancestry, newest
// first. Next returns [io.EOF] when the walk is exhausted. Close releases
// backend resources and must be called when the iterator is abandoned
// before exhaustion.
type AncestorIter interface {
	Next(ctx context.Context) (Ancestor, error)
	Close()
}

// FileState is the desired state of one path in a commit being created.
// A zero CopiedFrom means no provenance; Absent means the path does not
// exist in the new tree.
type FileState struct {
	Content    []byte
	Absent     bool
	CopiedFrom string
}

// PathMap collects the per-path outcomes of applying one diff.
type PathMap map[string]FileState

// CommitRequest carries everything needed to materialize a commit.
type CommitRequest struct {
	// Base is the commit whose tree the Files are applied on top of. It is
	// always the first parent.
	Base CommitID
	// Parents is the full parent list, starting with Base.
	Parents []CommitID
	Files   PathMap

	AuthorName  string
	AuthorEmail string
	When        time.Time
	Message     string
}

// Repository is the backend capability surface consumed by the engine.
// Implementations must be safe for sequential use; concurrency safety is
// not assumed anywhere in the engine.
type Repository interface {
	// Lookup resolves a reference (hash, ref name, revision spec) to a
	// commit. Fails with ErrNotFound.
	Lookup(ctx context.Context, ref string) (CommitID, error)

	// Parents returns the commit's parents, first parent first.
	Parents(ctx context.Context, id CommitID) ([]CommitID, error)

	// CommitTime returns the commit's timestamp, used to order candidates
	// by recency.
	CommitTime(ctx context.Context, id CommitID) (time.Time, error)

	// ReadBlob returns the contents of path at the commit. Fails with
	// ErrNotFound if the path is absent there. The returned slice is
	// never nil for an existing empty file.
	ReadBlob(ctx context.Context, id CommitID, path string) ([]byte, error)

	// Ancestors walks the commit's ancestry, newest first, single-pass.
	Ancestors(ctx context.Context, id CommitID) (AncestorIter, error)

	// TouchedPath reports whether the commit changed path relative to its
	// first parent.
	TouchedPath(ctx context.Context, id CommitID, path string) (bool, error)

	// HistoryOf returns every commit that touched path, newest first,
	// using a direct index. Backends without such an index return
	// ErrNoHistoryIndex.
	HistoryOf(ctx context.Context, path string) ([]CommitID, error)

	// Heads returns the bounded set of head commits the fallback candidate
	// walk starts from: the integration branch tip plus local heads.
	Heads(ctx context.Context) ([]CommitID, error)

	// CreateCommit materializes a new commit and returns its id. Failures
	// are fatal to the engine and never retried.
	CreateCommit(ctx context.Context, req CommitRequest) (CommitID, error)
}
