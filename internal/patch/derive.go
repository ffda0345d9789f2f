package patch

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/scmtools/diffstack/internal/review"
)

// DeriveHunks computes hunks that transform old into new, in the same
// full-context form the review server produces: one hunk spanning the whole
// file, every unchanged line present as context. A nil old means the file
// is being created. Reconstructing old with the returned hunks yields new.
func DeriveHunks(old, new []byte) []review.Hunk {
	oldLines := logicalLines(old)
	newLines := logicalLines(new)

	hunk := review.Hunk{OldOffset: 1}
	if old == nil {
		hunk.OldOffset = 0
	}

	for _, d := range diffLines(strings.Join(oldLines, "\n"), strings.Join(newLines, "\n"), oldLines, newLines) {
		hunk.Lines = append(hunk.Lines, d)
	}

	if !strings.HasSuffix(string(new), "\n") {
		hunk.Lines = append(hunk.Lines, review.Line{Kind: review.LineNoNewline})
	}

	return []review.Hunk{hunk}
}

// diffLines produces tagged lines turning oldLines into newLines using a
// line-granularity diff.
func diffLines(oldText, newText string, oldLines, newLines []string) []review.Line {
	// Fast paths: pure creation or deletion need no diffing.
	switch {
	case len(oldLines) == 0:
		return tagAll(newLines, review.LineAdded)
	case len(newLines) == 0:
		return tagAll(oldLines, review.LineRemoved)
	}

	dmp := diffmatchpatch.New()

	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldText+"\n", newText+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineArray)

	var out []review.Line

	for _, d := range diffs {
		var kind review.LineKind

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = review.LineContext
		case diffmatchpatch.DiffDelete:
			kind = review.LineRemoved
		case diffmatchpatch.DiffInsert:
			kind = review.LineAdded
		}

		out = append(out, tagAll(logicalLines([]byte(d.Text)), kind)...)
	}

	return out
}

func tagAll(lines []string, kind review.LineKind) []review.Line {
	out := make([]review.Line, 0, len(lines))
	for _, text := range lines {
		out = append(out, review.Line{Kind: kind, Text: text})
	}

	return out
}

// logicalLines splits content into lines, not counting a terminating
// newline as starting an extra empty line.
func logicalLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}

	lines := strings.Split(string(content), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}
