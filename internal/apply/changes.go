package apply

import (
	"context"
	"errors"
	"fmt"

	"github.com/scmtools/diffstack/internal/patch"
	"github.com/scmtools/diffstack/internal/repo"
	"github.com/scmtools/diffstack/internal/review"
)

// ApplyChanges applies every change of one diff against the candidate
// commit and returns the resulting path map. Per-path failures are
// accumulated across the whole change set and returned together as one
// [BadPatchError]; an unsupported change kind or a backend failure
// returns immediately instead, since neither is candidate-specific.
func ApplyChanges(ctx context.Context, r repo.Repository, candidate repo.CommitID, changes []review.Change) (repo.PathMap, error) {
	out := make(repo.PathMap)

	var failed []*PathPatchError

	fail := func(path string, err error) {
		failed = append(failed, &PathPatchError{Path: path, Err: err})
	}

	for i := range changes {
		change := &changes[i]

		if err := change.Validate(); err != nil {
			fail(change.Path(), err)

			continue
		}

		switch change.Kind {
		case review.ChangeAdd:
			exists, err := blobExists(ctx, r, candidate, change.NewPath)
			if err != nil {
				return nil, err
			}

			if exists {
				fail(change.NewPath, fmt.Errorf("already exists at %s", candidate))

				continue
			}

			content, err := patch.Reconstruct(nil, change.Hunks)
			if err != nil {
				fail(change.NewPath, err)

				continue
			}

			out[change.NewPath] = repo.FileState{Content: content}

		case review.ChangeModify:
			old, err := r.ReadBlob(ctx, candidate, change.OldPath)
			if errors.Is(err, repo.ErrNotFound) {
				fail(change.OldPath, fmt.Errorf("does not exist at %s", candidate))

				continue
			}

			if err != nil {
				return nil, fmt.Errorf("read %s at %s: %w", change.OldPath, candidate, err)
			}

			content, err := patch.Reconstruct(old, change.Hunks)
			if err != nil {
				fail(change.OldPath, err)

				continue
			}

			out[change.NewPath] = repo.FileState{Content: content}

		case review.ChangeDelete, review.ChangeMoveAway:
			exists, err := blobExists(ctx, r, candidate, change.OldPath)
			if err != nil {
				return nil, err
			}

			if !exists {
				fail(change.OldPath, fmt.Errorf("does not exist at %s", candidate))

				continue
			}

			out[change.OldPath] = repo.FileState{Absent: true}

		case review.ChangeMoveHere, review.ChangeCopyHere:
			exists, err := blobExists(ctx, r, candidate, change.NewPath)
			if err != nil {
				return nil, err
			}

			if exists {
				fail(change.NewPath, fmt.Errorf("already exists at %s", candidate))

				continue
			}

			old, err := r.ReadBlob(ctx, candidate, change.OldPath)
			if errors.Is(err, repo.ErrNotFound) {
				fail(change.NewPath, fmt.Errorf("source %s does not exist at %s", change.OldPath, candidate))

				continue
			}

			if err != nil {
				return nil, fmt.Errorf("read %s at %s: %w", change.OldPath, candidate, err)
			}

			content, err := patch.Reconstruct(old, change.Hunks)
			if err != nil {
				fail(change.NewPath, err)

				continue
			}

			out[change.NewPath] = repo.FileState{Content: content, CopiedFrom: change.OldPath}

		case review.ChangeCopyAway:
			// The source stays as-is; the paired CopyHere does the work.

		default:
			return nil, &UnsupportedChangeError{Kind: change.Kind, Path: change.Path()}
		}
	}

	if len(failed) > 0 {
		return nil, &BadPatchError{Candidate: candidate, Paths: failed}
	}

	return out, nil
}

// blobExists distinguishes an absent path from a backend failure.
func blobExists(ctx context.Context, r repo.Repository, id repo.CommitID, path string) (bool, error) {
	_, err := r.ReadBlob(ctx, id, path)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("read %s at %s: %w", path, id, err)
	}

	return true, nil
}
