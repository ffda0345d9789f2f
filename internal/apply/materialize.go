package apply

import (
	"context"
	"fmt"
	"time"

	"github.com/scmtools/diffstack/internal/repo"
)

// CommitMeta is the metadata a materialized commit carries.
type CommitMeta struct {
	AuthorName  string
	AuthorEmail string
	When        time.Time
	Message     string

	// ChainParent is the commit produced by the previous applied diff of
	// the same revision, or empty for the first.
	ChainParent repo.CommitID
}

// Materialize creates the commit for one accepted candidate attempt.
//
// The first parent is always the candidate, so the commit reflects the
// base the diff actually applied to. When a chain parent exists and
// differs from the candidate it becomes the second parent, threading the
// revision's commits together. A backend write failure is fatal and is
// not retried.
func Materialize(ctx context.Context, r repo.Repository, candidate repo.CommitID, files repo.PathMap, meta CommitMeta) (repo.CommitID, error) {
	parents := []repo.CommitID{candidate}

	if meta.ChainParent != "" && meta.ChainParent != candidate {
		parents = append(parents, meta.ChainParent)
	}

	id, err := r.CreateCommit(ctx, repo.CommitRequest{
		Base:        candidate,
		Parents:     parents,
		Files:       files,
		AuthorName:  meta.AuthorName,
		AuthorEmail: meta.AuthorEmail,
		When:        meta.When,
		Message:     meta.Message,
	})
	if err != nil {
		return "", fmt.Errorf("create commit on %s: %w", candidate, err)
	}

	return id, nil
}
