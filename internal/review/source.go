package review

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSuchRevision is returned when a source has no revision with the
// requested id.
var ErrNoSuchRevision = errors.New("no such revision")

// Source supplies revisions with their diffs already parsed into the
// package data model. Implementations talk to a review server, read
// exported payload files, or serve fixtures in tests.
type Source interface {
	GetRevision(ctx context.Context, id RevisionID) (*Revision, error)
}

// StaticSource serves a fixed set of revisions. Useful for tests and as
// the backing for file-based sources.
type StaticSource struct {
	revisions map[RevisionID]*Revision
}

// NewStaticSource creates a source serving the given revisions.
func NewStaticSource(revisions ...*Revision) *StaticSource {
	m := make(map[RevisionID]*Revision, len(revisions))
	for _, rev := range revisions {
		m[rev.ID] = rev
	}

	return &StaticSource{revisions: m}
}

// GetRevision returns the revision with the given id.
func (s *StaticSource) GetRevision(_ context.Context, id RevisionID) (*Revision, error) {
	rev, ok := s.revisions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchRevision, id)
	}

	return rev, nil
}
