// Package mapping persists which commit each applied diff produced.
//
// The store is a plain append-only text file, one record per line:
//
//	<diff_id>: <commit_id>
//
// Later records for the same diff win, so a re-applied diff is recorded
// by appending, never by rewriting the file.
package mapping

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/scmtools/diffstack/internal/repo"
	"github.com/scmtools/diffstack/internal/review"
)

// ErrCorruptRecord reports a line that does not parse as a mapping record.
var ErrCorruptRecord = errors.New("corrupt mapping record")

var recordPattern = regexp.MustCompile(`^([0-9]+): ([0-9a-fA-F]+)$`)

// Store reads and appends diff-to-commit records in one mapping file.
// Concurrent writers are not coordinated; the caller is expected to be
// the only process applying diffs to the repository.
type Store struct {
	path string
}

// NewStore returns a store over the given file path. The file does not
// need to exist yet; it is created on first Record.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads every record in the file. A missing file is an empty
// mapping. For diffs recorded more than once the last record wins.
func (s *Store) Load() (map[review.DiffID]repo.CommitID, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[review.DiffID]repo.CommitID{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("open mapping file: %w", err)
	}

	defer f.Close()

	out := make(map[review.DiffID]repo.CommitID)

	lineNo := 0
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if line == "" {
			continue
		}

		m := recordPattern.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("%s:%d: %w: %q", s.path, lineNo, ErrCorruptRecord, line)
		}

		diffID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w: %q", s.path, lineNo, ErrCorruptRecord, line)
		}

		out[review.DiffID(diffID)] = repo.CommitID(m[2])
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}

	return out, nil
}

// Record appends one diff-to-commit record. The write is a single
// appended line so a crash mid-run leaves at most one truncated record
// at the tail.
func (s *Store) Record(diffID review.DiffID, commit repo.CommitID) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open mapping file for append: %w", err)
	}

	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d: %s\n", diffID, commit); err != nil {
		return fmt.Errorf("append mapping record: %w", err)
	}

	return nil
}
