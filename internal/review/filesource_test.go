package review

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestFileSourceJSON(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "d7.json", `{
  "id": 7,
  "title": "JSON fixture",
  "diffs": [{"id": 30, "changes": [{"currentPath": "a.txt", "type": 1, "hunks": [
    {"oldOffset": 0, "corpus": "+x\n"}
  ]}]}]
}`)

	src, err := NewFileSource(path)
	require.NoError(t, err)

	rev, err := src.GetRevision(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "JSON fixture", rev.Title)
	require.Len(t, rev.Diffs, 1)
}

func TestFileSourceYAML(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "d8.yaml", `id: 8
title: YAML fixture
diffs:
  - id: 35
    sourceControlSystem: git
    changes:
      - currentPath: b.txt
        type: 2
        hunks:
          - oldOffset: 1
            corpus: "-old\n+new\n"
`)

	src, err := NewFileSource(path)
	require.NoError(t, err)

	rev, err := src.GetRevision(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, "YAML fixture", rev.Title)

	change := rev.Diffs[0].Changes[0]
	assert.Equal(t, ChangeModify, change.Kind)
	assert.Equal(t, "b.txt", change.NewPath)
}

func TestFileSourceUnknownRevision(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "d7.json", `{"id": 7}`)

	src, err := NewFileSource(path)
	require.NoError(t, err)

	_, err = src.GetRevision(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNoSuchRevision)
}

func TestFileSourceSchemaViolation(t *testing.T) {
	t.Parallel()

	// A change without its required type field.
	path := writeFixture(t, "bad.json", `{
  "id": 7,
  "diffs": [{"id": 30, "changes": [{"currentPath": "a.txt"}]}]
}`)

	_, err := NewFileSource(path)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestFileSourceRevisionsListsAll(t *testing.T) {
	t.Parallel()

	a := writeFixture(t, "a.json", `{"id": 1}`)
	b := writeFixture(t, "b.json", `{"id": 2}`)

	src, err := NewFileSource(a, b)
	require.NoError(t, err)
	assert.ElementsMatch(t, []RevisionID{1, 2}, src.Revisions())
}
