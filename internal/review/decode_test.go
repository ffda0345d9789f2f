package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listPayload = `{
  "id": "7",
  "title": "Teach the parser about widgets",
  "summary": "Widgets were silently dropped.",
  "testPlan": "go test ./parser",
  "uri": "https://reviews.example.com/D7",
  "diffs": [
    {
      "id": 32,
      "sourceControlBaseRevision": "0123456789abcdef0123456789abcdef01234567",
      "sourceControlSystem": "git",
      "authorName": "Reba Reviewer",
      "authorEmail": "reba@example.com",
      "dateCreated": "1722470400",
      "changes": [
        {
          "currentPath": "parser/widget.go",
          "oldPath": "parser/widget.go",
          "type": 2,
          "hunks": [
            {"oldOffset": "1", "newOffset": "1", "corpus": " foo\n-bar\n+BAR\n baz\n"}
          ]
        }
      ]
    },
    {
      "id": 31,
      "sourceControlSystem": "git",
      "changes": [
        {"currentPath": "parser/new.go", "type": 1, "hunks": [
          {"oldOffset": 0, "newOffset": 1, "corpus": "+hello\n"}
        ]}
      ]
    }
  ]
}`

func TestDecodeRevisionListForm(t *testing.T) {
	t.Parallel()

	rev, err := DecodeRevision([]byte(listPayload))
	require.NoError(t, err)

	assert.Equal(t, RevisionID(7), rev.ID)
	assert.Equal(t, "Teach the parser about widgets", rev.Title)
	require.Len(t, rev.Diffs, 2)

	// Sorted ascending regardless of wire order.
	assert.Equal(t, DiffID(31), rev.Diffs[0].ID)
	assert.Equal(t, DiffID(32), rev.Diffs[1].ID)

	modify := rev.Diffs[1]
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", modify.BaseRevision)
	assert.Equal(t, time.Unix(1722470400, 0).UTC(), modify.Created)

	require.Len(t, modify.Changes, 1)
	change := modify.Changes[0]
	assert.Equal(t, ChangeModify, change.Kind)
	assert.Equal(t, "parser/widget.go", change.OldPath)
	assert.Equal(t, "parser/widget.go", change.NewPath)

	require.Len(t, change.Hunks, 1)
	hunk := change.Hunks[0]
	assert.Equal(t, 1, hunk.OldOffset)
	assert.Equal(t, []Line{
		{Kind: LineContext, Text: "foo"},
		{Kind: LineRemoved, Text: "bar"},
		{Kind: LineAdded, Text: "BAR"},
		{Kind: LineContext, Text: "baz"},
	}, hunk.Lines)
}

func TestDecodeRevisionMapForm(t *testing.T) {
	t.Parallel()

	payload := `{
  "id": 9,
  "diffs": {
    "40": {"id": 40, "changes": [{"currentPath": "a.txt", "type": 3}]},
    "41": {"id": 41, "changes": [{"currentPath": "b.txt", "type": 1, "hunks": [
      {"oldOffset": 0, "corpus": "+x\n"}
    ]}]}
  }
}`

	rev, err := DecodeRevision([]byte(payload))
	require.NoError(t, err)

	require.Len(t, rev.Diffs, 2)
	assert.Equal(t, DiffID(40), rev.Diffs[0].ID)
	assert.Equal(t, ChangeDelete, rev.Diffs[0].Changes[0].Kind)
	assert.Equal(t, "a.txt", rev.Diffs[0].Changes[0].OldPath)
	assert.Empty(t, rev.Diffs[0].Changes[0].NewPath)
}

func TestDecodeMovePair(t *testing.T) {
	t.Parallel()

	payload := `{
  "id": 9,
  "diffs": [{"id": 40, "changes": [
    {"currentPath": "old/name.go", "type": 4},
    {"currentPath": "new/name.go", "oldPath": "old/name.go", "type": 6}
  ]}]
}`

	rev, err := DecodeRevision([]byte(payload))
	require.NoError(t, err)

	changes := rev.Diffs[0].Changes
	require.Len(t, changes, 2)

	assert.Equal(t, ChangeMoveAway, changes[0].Kind)
	assert.Equal(t, "old/name.go", changes[0].OldPath)

	assert.Equal(t, ChangeMoveHere, changes[1].Kind)
	assert.Equal(t, "old/name.go", changes[1].OldPath)
	assert.Equal(t, "new/name.go", changes[1].NewPath)
}

func TestDecodeNoNewlineSentinel(t *testing.T) {
	t.Parallel()

	payload := `{
  "id": 9,
  "diffs": [{"id": 40, "changes": [
    {"currentPath": "a.txt", "type": 1, "hunks": [
      {"oldOffset": 0, "corpus": "+last line\n\\ No newline at end of file\n"}
    ]}
  ]}]
}`

	rev, err := DecodeRevision([]byte(payload))
	require.NoError(t, err)

	lines := rev.Diffs[0].Changes[0].Hunks[0].Lines
	require.Len(t, lines, 2)
	assert.Equal(t, LineAdded, lines[0].Kind)
	assert.Equal(t, LineNoNewline, lines[1].Kind)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{{`},
		{"missing id", `{"title": "x"}`},
		{"bad corpus line", `{
  "id": 9,
  "diffs": [{"id": 40, "changes": [
    {"currentPath": "a.txt", "type": 2, "hunks": [{"oldOffset": 1, "corpus": "?what\n"}]}
  ]}]
}`},
		{"bad path invariant", `{
  "id": 9,
  "diffs": [{"id": 40, "changes": [{"type": 2, "hunks": []}]}]
}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := DecodeRevision([]byte(tc.payload))
			assert.Error(t, err)
		})
	}
}
