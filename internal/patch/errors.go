// Package patch reconstructs file contents from line-oriented hunks.
// Matching is exact: any divergence between a hunk's context/removed
// lines and the old content is a hard failure, never fuzzed around.
package patch

import "fmt"

// MismatchError reports that the old content did not match what the hunks
// expect at a specific line, or that the hunks are structurally
// inconsistent with the old content (bad offset, content not consumed).
type MismatchError struct {
	// Line is the one-based line number in the old file, zero when the
	// failure is not tied to a specific line.
	Line int
	// Expected is the old file's text at Line.
	Expected string
	// Found is the hunk's text at Line.
	Found string
	// Reason describes structural failures that have no expected/found pair.
	Reason string
}

func (e *MismatchError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}

	return fmt.Sprintf("mismatch at line %d: expected %q, found %q", e.Line, e.Expected, e.Found)
}

func mismatchf(format string, args ...any) *MismatchError {
	return &MismatchError{Reason: fmt.Sprintf(format, args...)}
}
