package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// noNewlineSentinel is emitted by the review server at the end of a hunk
// corpus when the file is missing a terminating newline. The server's
// isMissingOldNewline/isMissingNewNewline hunk properties are unreliable,
// so the sentinel line is the authoritative signal.
const noNewlineSentinel = `\ No newline at end of file`

// Decode errors.
var (
	ErrBadPayload = errors.New("malformed revision payload")
	ErrBadHunk    = errors.New("malformed hunk corpus")
)

// wireRevision mirrors the revision payload shape of the review server.
// Numeric fields arrive as either JSON numbers or strings depending on
// server version, hence flexInt. The diffs collection arrives as a list in
// older versions and as an id-keyed object in newer ones.
type wireRevision struct {
	ID       flexInt         `json:"id"`
	Title    string          `json:"title"`
	Summary  string          `json:"summary"`
	TestPlan string          `json:"testPlan"`
	URI      string          `json:"uri"`
	Diffs    json.RawMessage `json:"diffs"`
}

type wireDiff struct {
	ID                  flexInt      `json:"id"`
	SourceControlBase   string       `json:"sourceControlBaseRevision"`
	SourceControlSystem string       `json:"sourceControlSystem"`
	AuthorName          string       `json:"authorName"`
	AuthorEmail         string       `json:"authorEmail"`
	DateCreated         flexInt      `json:"dateCreated"`
	Changes             []wireChange `json:"changes"`
}

type wireChange struct {
	CurrentPath string     `json:"currentPath"`
	OldPath     string     `json:"oldPath"`
	Type        flexInt    `json:"type"`
	Hunks       []wireHunk `json:"hunks"`
}

type wireHunk struct {
	OldOffset flexInt `json:"oldOffset"`
	NewOffset flexInt `json:"newOffset"`
	Corpus    string  `json:"corpus"`
}

// flexInt decodes a JSON number or a numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0

		return nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse int %q: %w", s, err)
	}

	*f = flexInt(v)

	return nil
}

// DecodeRevision parses a revision payload in the review server's wire
// format into the package data model. Diffs are sorted by ascending id.
func DecodeRevision(data []byte) (*Revision, error) {
	var wire wireRevision

	err := json.Unmarshal(data, &wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	if wire.ID == 0 {
		return nil, fmt.Errorf("%w: missing revision id", ErrBadPayload)
	}

	wireDiffs, err := decodeDiffCollection(wire.Diffs)
	if err != nil {
		return nil, err
	}

	rev := &Revision{
		ID:       RevisionID(wire.ID),
		Title:    wire.Title,
		Summary:  wire.Summary,
		TestPlan: wire.TestPlan,
		URI:      wire.URI,
	}

	for i := range wireDiffs {
		diff, diffErr := decodeDiff(&wireDiffs[i])
		if diffErr != nil {
			return nil, diffErr
		}

		rev.Diffs = append(rev.Diffs, diff)
	}

	rev.SortDiffs()

	return rev, nil
}

// decodeDiffCollection accepts both the old list form and the new
// id-keyed object form of the diffs field.
func decodeDiffCollection(raw json.RawMessage) ([]wireDiff, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var asList []wireDiff

	listErr := json.Unmarshal(raw, &asList)
	if listErr == nil {
		return asList, nil
	}

	var asMap map[string]wireDiff

	mapErr := json.Unmarshal(raw, &asMap)
	if mapErr != nil {
		return nil, fmt.Errorf("%w: diffs is neither a list nor an object: %w", ErrBadPayload, mapErr)
	}

	keys := make([]string, 0, len(asMap))
	for k := range asMap {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make([]wireDiff, 0, len(asMap))
	for _, k := range keys {
		out = append(out, asMap[k])
	}

	return out, nil
}

func decodeDiff(wire *wireDiff) (*Diff, error) {
	diff := &Diff{
		ID:                  DiffID(wire.ID),
		BaseRevision:        wire.SourceControlBase,
		SourceControlSystem: wire.SourceControlSystem,
		AuthorName:          wire.AuthorName,
		AuthorEmail:         wire.AuthorEmail,
	}

	if wire.DateCreated != 0 {
		diff.Created = time.Unix(int64(wire.DateCreated), 0).UTC()
	}

	for i := range wire.Changes {
		change, err := decodeChange(&wire.Changes[i])
		if err != nil {
			return nil, fmt.Errorf("diff %d: %w", diff.ID, err)
		}

		diff.Changes = append(diff.Changes, change)
	}

	return diff, nil
}

// decodeChange normalizes the server's currentPath/oldPath pair into the
// model's kind-specific path convention.
func decodeChange(wire *wireChange) (Change, error) {
	change := Change{Kind: ChangeKind(wire.Type)}

	switch change.Kind {
	case ChangeAdd:
		change.NewPath = wire.CurrentPath
	case ChangeModify:
		change.OldPath = wire.CurrentPath
		change.NewPath = wire.CurrentPath
	case ChangeDelete, ChangeMoveAway, ChangeCopyAway:
		change.OldPath = wire.CurrentPath
	case ChangeMoveHere, ChangeCopyHere:
		change.OldPath = wire.OldPath
		change.NewPath = wire.CurrentPath
	default:
		change.OldPath = wire.OldPath
		change.NewPath = wire.CurrentPath
	}

	for i := range wire.Hunks {
		hunk, err := decodeHunk(&wire.Hunks[i])
		if err != nil {
			return Change{}, fmt.Errorf("path %q: %w", change.Path(), err)
		}

		change.Hunks = append(change.Hunks, hunk)
	}

	err := change.Validate()
	if err != nil {
		return Change{}, err
	}

	return change, nil
}

func decodeHunk(wire *wireHunk) (Hunk, error) {
	hunk := Hunk{OldOffset: int(wire.OldOffset)}

	corpus := wire.Corpus
	if corpus == "" {
		return hunk, nil
	}

	lines := strings.Split(corpus, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	for _, line := range lines {
		switch {
		case line == noNewlineSentinel:
			hunk.Lines = append(hunk.Lines, Line{Kind: LineNoNewline})
		case strings.HasPrefix(line, " "):
			hunk.Lines = append(hunk.Lines, Line{Kind: LineContext, Text: line[1:]})
		case strings.HasPrefix(line, "-"):
			hunk.Lines = append(hunk.Lines, Line{Kind: LineRemoved, Text: line[1:]})
		case strings.HasPrefix(line, "+"):
			hunk.Lines = append(hunk.Lines, Line{Kind: LineAdded, Text: line[1:]})
		default:
			return Hunk{}, fmt.Errorf("%w: unexpected line %q", ErrBadHunk, line)
		}
	}

	return hunk, nil
}
