package apply

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmtools/diffstack/internal/mapping"
	"github.com/scmtools/diffstack/internal/repo"
	"github.com/scmtools/diffstack/internal/review"
)

func editDiff(id review.DiffID, oldLine, newLine string) *review.Diff {
	return &review.Diff{
		ID: id,
		Changes: []review.Change{{
			Kind:    review.ChangeModify,
			OldPath: "a.txt",
			NewPath: "a.txt",
			Hunks: []review.Hunk{{
				OldOffset: 1,
				Lines:     []review.Line{remLine(oldLine), addLine(newLine)},
			}},
		}},
	}
}

func seedRepo() *repo.Mem {
	m := repo.NewMem()

	c1 := m.AddCommit(nil, map[string]string{"a.txt": "one\n"})
	m.SetHeads(c1)
	m.SetRef("origin/master", c1)

	return m
}

func newSequencer(t *testing.T, m *repo.Mem, source review.Source) (*Sequencer, *mapping.Store) {
	t.Helper()

	store := mapping.NewStore(filepath.Join(t.TempDir(), "mapping"))
	seq := NewSequencer(source, store, newApplicator(m, 0), nil, nil)

	return seq, store
}

func TestSequencerSkipAndContinue(t *testing.T) {
	t.Parallel()

	m := seedRepo()

	// D2 matches no content anywhere; D1 and D3 chain through it.
	source := review.NewStaticSource(&review.Revision{
		ID:    5,
		Title: "Edit a.txt",
		Diffs: []*review.Diff{
			editDiff(1, "one", "two"),
			editDiff(2, "never was", "anything"),
			editDiff(3, "two", "three"),
		},
	})

	seq, store := newSequencer(t, m, source)

	result, err := seq.ApplyRevision(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, []review.DiffID{2}, result.Skipped)
	assert.Equal(t, []review.DiffID{1, 3}, result.Applied)

	commitA := result.Commits[1]
	commitC := result.Commits[3]
	require.NotEmpty(t, commitA)
	require.NotEmpty(t, commitC)

	// D3 chains against D1's commit, not anything derived from D2.
	info, ok := m.Info(commitC)
	require.True(t, ok)
	assert.Contains(t, info.Parents, commitA)
	assert.Equal(t, "three\n", info.Files["a.txt"])

	mapped, err := store.Load()
	require.NoError(t, err)
	assert.NotContains(t, mapped, review.DiffID(2), "skipped diff gets no mapping entry")
	assert.Equal(t, commitA, mapped[1])
	assert.Equal(t, commitC, mapped[3])
}

func TestSequencerAppliesInAscendingIDOrder(t *testing.T) {
	t.Parallel()

	m := seedRepo()

	// Wire order is shuffled; each diff only applies on top of the
	// previous one, so success proves the id ordering.
	source := review.NewStaticSource(&review.Revision{
		ID: 5,
		Diffs: []*review.Diff{
			editDiff(3, "two", "three"),
			editDiff(1, "one", "two"),
		},
	})

	seq, _ := newSequencer(t, m, source)

	result, err := seq.ApplyRevision(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []review.DiffID{1, 3}, result.Applied)
}

func TestSequencerFatalOnLastDiff(t *testing.T) {
	t.Parallel()

	m := seedRepo()

	source := review.NewStaticSource(&review.Revision{
		ID: 5,
		Diffs: []*review.Diff{
			editDiff(1, "one", "two"),
			editDiff(2, "never was", "anything"),
		},
	})

	seq, store := newSequencer(t, m, source)

	_, err := seq.ApplyRevision(context.Background(), 5)

	var noCommit *NoApplicableCommitError

	require.ErrorAs(t, err, &noCommit)
	assert.Equal(t, review.DiffID(2), noCommit.DiffID)

	// The revision stays partially applied: D1 keeps its mapping.
	mapped, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Contains(t, mapped, review.DiffID(1))
}

func TestSequencerIdempotentResume(t *testing.T) {
	t.Parallel()

	m := seedRepo()

	source := review.NewStaticSource(&review.Revision{
		ID: 5,
		Diffs: []*review.Diff{
			editDiff(1, "one", "two"),
			editDiff(2, "two", "three"),
		},
	})

	seq, store := newSequencer(t, m, source)

	first, err := seq.ApplyRevision(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, first.Applied, 2)

	// A fresh sequencer over the same mapping re-applies nothing.
	again := NewSequencer(source, store, newApplicator(m, 0), nil, nil)

	second, err := again.ApplyRevision(context.Background(), 5)
	require.NoError(t, err)

	assert.Empty(t, second.Applied)
	assert.Equal(t, first.Commits, second.Commits)
}

func TestSequencerResumesFromContiguousPrefixOnly(t *testing.T) {
	t.Parallel()

	m := seedRepo()

	source := review.NewStaticSource(&review.Revision{
		ID: 5,
		Diffs: []*review.Diff{
			editDiff(1, "one", "two"),
			editDiff(2, "two", "three"),
			editDiff(3, "three", "four"),
		},
	})

	seq, _ := newSequencer(t, m, source)

	first, err := seq.ApplyRevision(context.Background(), 5)
	require.NoError(t, err)

	// Rebuild the mapping with a gap at D2. D3's stale entry sits past
	// the gap, so both D2 and D3 are re-attempted.
	gapped := mapping.NewStore(filepath.Join(t.TempDir(), "mapping"))
	require.NoError(t, gapped.Record(1, first.Commits[1]))
	require.NoError(t, gapped.Record(3, first.Commits[3]))

	again := NewSequencer(source, gapped, newApplicator(m, 0), nil, nil)

	second, err := again.ApplyRevision(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, []review.DiffID{2, 3}, second.Applied)
	assert.Equal(t, first.Commits[1], second.Commits[1])
}

func TestSequencerInProgressRevisionReturnsEmpty(t *testing.T) {
	t.Parallel()

	m := seedRepo()
	seq, _ := newSequencer(t, m, review.NewStaticSource())

	// Simulate re-entry through a dependency cycle: the revision is
	// marked in progress further up the stack.
	seq.memo[42] = nil

	result, err := seq.ApplyRevision(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, result.Commits)
	assert.Empty(t, result.Applied)
}

func TestSequencerUnsupportedChangeIsFatalMidSequence(t *testing.T) {
	t.Parallel()

	m := seedRepo()

	source := review.NewStaticSource(&review.Revision{
		ID: 5,
		Diffs: []*review.Diff{
			{
				ID: 1,
				Changes: []review.Change{
					{Kind: review.ChangeChild, NewPath: "x"},
				},
			},
			editDiff(2, "one", "two"),
		},
	})

	seq, _ := newSequencer(t, m, source)

	_, err := seq.ApplyRevision(context.Background(), 5)

	var unsupported *UnsupportedChangeError

	require.ErrorAs(t, err, &unsupported)
}
