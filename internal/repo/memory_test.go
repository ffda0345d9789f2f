package repo

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemLookupAndBlobs(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMem()

	root := m.AddCommit(nil, map[string]string{"a.txt": "one\n"})
	child := m.AddCommit([]CommitID{root}, map[string]string{"a.txt": "two\n"})
	m.SetRef("main", child)

	id, err := m.Lookup(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, child, id)

	_, err = m.Lookup(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	data, err := m.ReadBlob(ctx, root, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "one\n", string(data))

	_, err = m.ReadBlob(ctx, root, "b.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemAncestorsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMem()

	c1 := m.AddCommit(nil, map[string]string{"f": "1"})
	c2 := m.AddCommit([]CommitID{c1}, map[string]string{"f": "2"})
	c3 := m.AddCommit([]CommitID{c2}, map[string]string{"f": "3"})

	iter, err := m.Ancestors(ctx, c3)
	require.NoError(t, err)

	defer iter.Close()

	var got []CommitID

	for {
		a, nextErr := iter.Next(ctx)
		if nextErr == io.EOF {
			break
		}

		require.NoError(t, nextErr)

		got = append(got, a.ID)
	}

	assert.Equal(t, []CommitID{c3, c2, c1}, got)
}

func TestMemHistoryOf(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMem()

	c1 := m.AddCommit(nil, map[string]string{"f": "1", "other": "x"})
	c2 := m.AddCommit([]CommitID{c1}, map[string]string{"other": "y"})
	c3 := m.AddCommit([]CommitID{c2}, map[string]string{"f": "2"})

	history, err := m.HistoryOf(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, []CommitID{c3, c1}, history)

	m.DisableHistoryIndex()

	_, err = m.HistoryOf(ctx, "f")
	require.ErrorIs(t, err, ErrNoHistoryIndex)
}

func TestMemCreateCommit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMem()

	base := m.AddCommit(nil, map[string]string{"keep": "k\n", "gone": "g\n", "mod": "old\n"})

	id, err := m.CreateCommit(ctx, CommitRequest{
		Base:    base,
		Parents: []CommitID{base},
		Files: PathMap{
			"mod":    {Content: []byte("new\n")},
			"gone":   {Absent: true},
			"copied": {Content: []byte("k\n"), CopiedFrom: "keep"},
		},
		AuthorName:  "Reviewer",
		AuthorEmail: "reviewer@example.com",
		When:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Message:     "apply diff",
	})
	require.NoError(t, err)

	info, ok := m.Info(id)
	require.True(t, ok)

	assert.Equal(t, []CommitID{base}, info.Parents)
	assert.Equal(t, "apply diff", info.Message)
	assert.Equal(t, map[string]string{
		"keep":   "k\n",
		"mod":    "new\n",
		"copied": "k\n",
	}, info.Files)
	assert.Equal(t, map[string]string{"copied": "keep"}, info.Provenance)
}
