package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmtools/diffstack/internal/review"
)

func hunk(oldOffset int, lines ...review.Line) review.Hunk {
	return review.Hunk{OldOffset: oldOffset, Lines: lines}
}

func ctx(text string) review.Line { return review.Line{Kind: review.LineContext, Text: text} }
func rem(text string) review.Line { return review.Line{Kind: review.LineRemoved, Text: text} }
func add(text string) review.Line { return review.Line{Kind: review.LineAdded, Text: text} }
func noNL() review.Line           { return review.Line{Kind: review.LineNoNewline} }

func TestReconstructReplaceLine(t *testing.T) {
	t.Parallel()

	old := []byte("foo\nbar\nbaz\n")
	hunks := []review.Hunk{
		hunk(1, ctx("foo"), rem("bar"), add("BAR"), ctx("baz")),
	}

	got, err := Reconstruct(old, hunks)
	require.NoError(t, err)
	assert.Equal(t, "foo\nBAR\nbaz\n", string(got))
}

func TestReconstructOffsetSeek(t *testing.T) {
	t.Parallel()

	// The hunk is anchored mid-file; earlier lines are covered by a
	// context-only hunk because hunks must consume the old file exactly.
	old := []byte("foo\nbar\nbaz\n")
	hunks := []review.Hunk{
		hunk(1, ctx("foo")),
		hunk(2, rem("bar"), add("BAR"), ctx("baz")),
	}

	got, err := Reconstruct(old, hunks)
	require.NoError(t, err)
	assert.Equal(t, "foo\nBAR\nbaz\n", string(got))
}

func TestReconstructContextMismatch(t *testing.T) {
	t.Parallel()

	old := []byte("foo\nbar\n")
	hunks := []review.Hunk{hunk(1, ctx("foo"), ctx("baz"))}

	_, err := Reconstruct(old, hunks)
	require.Error(t, err)

	var mismatch *MismatchError

	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Line)
	assert.Equal(t, "bar", mismatch.Expected)
	assert.Equal(t, "baz", mismatch.Found)
}

func TestReconstructNewFile(t *testing.T) {
	t.Parallel()

	hunks := []review.Hunk{hunk(0, add("hello"))}

	got, err := Reconstruct(nil, hunks)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(got))
}

func TestReconstructNewFileRejectsOldContent(t *testing.T) {
	t.Parallel()

	hunks := []review.Hunk{hunk(0, ctx("stale"))}

	_, err := Reconstruct(nil, hunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newly created file")
}

func TestReconstructNoHunksKeepsContent(t *testing.T) {
	t.Parallel()

	old := []byte("unchanged\n")

	got, err := Reconstruct(old, nil)
	require.NoError(t, err)
	assert.Equal(t, old, got)
}

func TestReconstructUnconsumedTail(t *testing.T) {
	t.Parallel()

	old := []byte("a\nb\nc\n")
	hunks := []review.Hunk{hunk(1, ctx("a"))}

	_, err := Reconstruct(old, hunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patch ended at line")
}

func TestReconstructPastEndOfOld(t *testing.T) {
	t.Parallel()

	old := []byte("a")
	hunks := []review.Hunk{hunk(1, ctx("a"), ctx("b"))}

	_, err := Reconstruct(old, hunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "old file ends at line 1")
}

func TestReconstructNoTrailingNewline(t *testing.T) {
	t.Parallel()

	old := []byte("a\nb\n")
	hunks := []review.Hunk{
		hunk(1, ctx("a"), rem("b"), add("B"), noNL()),
	}

	got, err := Reconstruct(old, hunks)
	require.NoError(t, err)
	assert.Equal(t, "a\nB", string(got))
}

func TestReconstructOldMissingTrailingNewline(t *testing.T) {
	t.Parallel()

	// "b" has no terminating newline; the hunks must still consume it.
	old := []byte("a\nb")
	hunks := []review.Hunk{
		hunk(1, ctx("a"), ctx("b"), noNL()),
	}

	got, err := Reconstruct(old, hunks)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(got))
}

func TestReconstructStopsBeforeFinalUnterminatedLine(t *testing.T) {
	t.Parallel()

	old := []byte("a\nb")
	hunks := []review.Hunk{hunk(1, ctx("a"))}

	_, err := Reconstruct(old, hunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a terminating newline")
}

func TestReconstructMarkerMustBeLast(t *testing.T) {
	t.Parallel()

	old := []byte("a\n")
	hunks := []review.Hunk{hunk(1, noNL(), ctx("a"))}

	_, err := Reconstruct(old, hunks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-newline marker")
}

func TestReconstructDeleteEverything(t *testing.T) {
	t.Parallel()

	old := []byte("a\nb\n")
	hunks := []review.Hunk{hunk(1, rem("a"), rem("b"), noNL())}

	got, err := Reconstruct(old, hunks)
	require.NoError(t, err)
	assert.Empty(t, got)
}
