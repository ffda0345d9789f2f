package patch

import (
	"strings"

	"github.com/scmtools/diffstack/internal/review"
)

// Reconstruct applies hunks to old content and returns the new content.
//
// A nil old means the file did not previously exist (a creation); an empty
// non-nil slice is an existing empty file. With no hunks the old content is
// returned unchanged, which covers pure renames and copies.
//
// Hunks are walked in order. Context and removed lines must match the old
// content byte for byte, and together the hunks must consume the old
// content exactly; any divergence yields a [*MismatchError].
func Reconstruct(old []byte, hunks []review.Hunk) ([]byte, error) {
	if len(hunks) == 0 {
		return old, nil
	}

	var oldLines []string
	if old != nil {
		oldLines = strings.Split(string(old), "\n")
	}

	var newLines []string

	// cursor indexes the next unconsumed line of oldLines; -1 before any
	// content is consumed. Offsets in hunks are one-based.
	cursor := -1
	trailingNewline := true

	for h := range hunks {
		hunk := &hunks[h]
		cursor = hunk.OldOffset - 1

		for i := range hunk.Lines {
			line := &hunk.Lines[i]

			switch line.Kind {
			case review.LineNoNewline:
				if i != len(hunk.Lines)-1 {
					return nil, mismatchf("no-newline marker before end of hunk")
				}

				trailingNewline = false

			case review.LineAdded:
				newLines = append(newLines, line.Text)

			case review.LineContext, review.LineRemoved:
				matched, err := matchOldLine(old, oldLines, cursor, line.Text)
				if err != nil {
					return nil, err
				}

				cursor++

				if line.Kind == review.LineContext {
					newLines = append(newLines, matched)
				}
			}
		}
	}

	err := checkConsumed(old, oldLines, cursor)
	if err != nil {
		return nil, err
	}

	out := strings.Join(newLines, "\n")
	if trailingNewline {
		out += "\n"
	}

	return []byte(out), nil
}

// matchOldLine verifies that the old file has exactly text at cursor and
// returns the old line.
func matchOldLine(old []byte, oldLines []string, cursor int, text string) (string, error) {
	if old == nil {
		return "", mismatchf("bad patch data: old content referenced for newly created file")
	}

	if cursor >= len(oldLines) {
		return "", mismatchf("mismatch at line %d: old file ends at line %d", cursor+1, len(oldLines))
	}

	if cursor < 0 {
		return "", mismatchf("bad patch data: old content referenced at invalid line number %d", cursor+1)
	}

	oldLine := oldLines[cursor]
	if oldLine != text {
		return "", &MismatchError{Line: cursor + 1, Expected: oldLine, Found: text}
	}

	return oldLine, nil
}

// checkConsumed verifies the hunks used up all of the old content.
func checkConsumed(old []byte, oldLines []string, cursor int) error {
	if old == nil {
		// Only zero-offset, purely-added hunks are legal against an absent
		// file, so the cursor must never have moved.
		if cursor != -1 {
			return mismatchf("mismatch: old file was empty")
		}

		return nil
	}

	switch {
	case cursor == len(oldLines):
		return nil
	case cursor == len(oldLines)-1:
		// The final element of oldLines is the empty string left by a
		// terminating newline; anything else is real unconsumed content.
		if oldLines[cursor] != "" {
			return mismatchf("patch stopped before the last line of the old file (which was missing a terminating newline)")
		}

		return nil
	default:
		return mismatchf("patch ended at line %d of old file, while file had %d lines", cursor+1, len(oldLines))
	}
}
