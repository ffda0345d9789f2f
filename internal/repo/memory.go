package repo

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"
)

// Mem is an in-memory [Repository] for tests. Commits hold full file
// snapshots; ancestry, per-path history, and commit creation behave like a
// real backend. The per-path history index can be switched off to force
// callers onto the fallback ancestor walk.
type Mem struct {
	commits      map[CommitID]*memCommit
	refs         map[string]CommitID
	heads        []CommitID
	historyIndex bool

	counter int
	clock   time.Time
}

type memCommit struct {
	id         CommitID
	parents    []CommitID
	when       time.Time
	message    string
	authorName string
	authorMail string
	files      map[string][]byte
	provenance map[string]string
}

// CommitInfo is a read-only view of a stored commit for test assertions.
type CommitInfo struct {
	Parents     []CommitID
	When        time.Time
	Message     string
	AuthorName  string
	AuthorEmail string
	Files       map[string]string
	Provenance  map[string]string
}

// NewMem creates an empty in-memory repository with the per-path history
// index enabled.
func NewMem() *Mem {
	return &Mem{
		commits:      make(map[CommitID]*memCommit),
		refs:         make(map[string]CommitID),
		historyIndex: true,
		clock:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// DisableHistoryIndex makes HistoryOf fail with [ErrNoHistoryIndex],
// forcing the fallback ancestor walk.
func (m *Mem) DisableHistoryIndex() {
	m.historyIndex = false
}

// AddCommit stores a commit whose snapshot is the first parent's snapshot
// with edits applied and removals dropped. Commit times increase in
// insertion order.
func (m *Mem) AddCommit(parents []CommitID, edits map[string]string, removals ...string) CommitID {
	m.counter++
	m.clock = m.clock.Add(time.Minute)

	id := CommitID(fmt.Sprintf("%040x", m.counter))

	files := make(map[string][]byte)

	if len(parents) > 0 {
		for path, data := range m.commits[parents[0]].files {
			files[path] = data
		}
	}

	for path, content := range edits {
		files[path] = []byte(content)
	}

	for _, path := range removals {
		delete(files, path)
	}

	m.commits[id] = &memCommit{
		id:      id,
		parents: append([]CommitID(nil), parents...),
		when:    m.clock,
		message: fmt.Sprintf("commit %d", m.counter),
		files:   files,
	}

	return id
}

// SetRef points a reference name at a commit.
func (m *Mem) SetRef(name string, id CommitID) {
	m.refs[name] = id
}

// SetHeads fixes the head set returned by Heads.
func (m *Mem) SetHeads(ids ...CommitID) {
	m.heads = append([]CommitID(nil), ids...)
}

// Info returns a read-only view of a commit.
func (m *Mem) Info(id CommitID) (CommitInfo, bool) {
	c, ok := m.commits[id]
	if !ok {
		return CommitInfo{}, false
	}

	files := make(map[string]string, len(c.files))
	for path, data := range c.files {
		files[path] = string(data)
	}

	return CommitInfo{
		Parents:     append([]CommitID(nil), c.parents...),
		When:        c.when,
		Message:     c.message,
		AuthorName:  c.authorName,
		AuthorEmail: c.authorMail,
		Files:       files,
		Provenance:  c.provenance,
	}, true
}

// Lookup resolves a ref name or a literal commit id.
func (m *Mem) Lookup(_ context.Context, ref string) (CommitID, error) {
	if id, ok := m.refs[ref]; ok {
		return id, nil
	}

	if _, ok := m.commits[CommitID(ref)]; ok {
		return CommitID(ref), nil
	}

	return "", fmt.Errorf("%w: ref %q", ErrNotFound, ref)
}

// Parents returns the commit's parents.
func (m *Mem) Parents(_ context.Context, id CommitID) ([]CommitID, error) {
	c, err := m.commit(id)
	if err != nil {
		return nil, err
	}

	return append([]CommitID(nil), c.parents...), nil
}

// CommitTime returns the commit's timestamp.
func (m *Mem) CommitTime(_ context.Context, id CommitID) (time.Time, error) {
	c, err := m.commit(id)
	if err != nil {
		return time.Time{}, err
	}

	return c.when, nil
}

// ReadBlob returns the contents of path at the commit.
func (m *Mem) ReadBlob(_ context.Context, id CommitID, path string) ([]byte, error) {
	c, err := m.commit(id)
	if err != nil {
		return nil, err
	}

	data, ok := c.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: path %q at %s", ErrNotFound, path, id)
	}

	out := make([]byte, len(data))
	copy(out, data)

	return out, nil
}

// Ancestors walks the commit's ancestry, newest first.
func (m *Mem) Ancestors(_ context.Context, id CommitID) (AncestorIter, error) {
	start, err := m.commit(id)
	if err != nil {
		return nil, err
	}

	seen := map[CommitID]struct{}{}
	queue := []*memCommit{start}

	var ancestry []Ancestor

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		if _, dup := seen[c.id]; dup {
			continue
		}

		seen[c.id] = struct{}{}

		ancestry = append(ancestry, Ancestor{ID: c.id, When: c.when})

		for _, p := range c.parents {
			if parent, ok := m.commits[p]; ok {
				queue = append(queue, parent)
			}
		}
	}

	sort.Slice(ancestry, func(i, j int) bool {
		return ancestry[i].When.After(ancestry[j].When)
	})

	return &sliceAncestorIter{ancestry: ancestry}, nil
}

// TouchedPath reports whether the commit changed path vs its first parent.
func (m *Mem) TouchedPath(_ context.Context, id CommitID, path string) (bool, error) {
	c, err := m.commit(id)
	if err != nil {
		return false, err
	}

	return m.touched(c, path), nil
}

func (m *Mem) touched(c *memCommit, path string) bool {
	data, present := c.files[path]

	if len(c.parents) == 0 {
		return present
	}

	parent, ok := m.commits[c.parents[0]]
	if !ok {
		return present
	}

	parentData, parentPresent := parent.files[path]
	if present != parentPresent {
		return true
	}

	return present && string(data) != string(parentData)
}

// HistoryOf returns the commits that touched path, newest first.
func (m *Mem) HistoryOf(_ context.Context, path string) ([]CommitID, error) {
	if !m.historyIndex {
		return nil, ErrNoHistoryIndex
	}

	var touched []*memCommit

	for _, c := range m.commits {
		if m.touched(c, path) {
			touched = append(touched, c)
		}
	}

	sort.Slice(touched, func(i, j int) bool {
		return touched[i].when.After(touched[j].when)
	})

	ids := make([]CommitID, len(touched))
	for i, c := range touched {
		ids[i] = c.id
	}

	return ids, nil
}

// Heads returns the configured head set.
func (m *Mem) Heads(_ context.Context) ([]CommitID, error) {
	return append([]CommitID(nil), m.heads...), nil
}

// CreateCommit materializes a commit from the base snapshot plus the
// request's file states.
func (m *Mem) CreateCommit(_ context.Context, req CommitRequest) (CommitID, error) {
	base, err := m.commit(req.Base)
	if err != nil {
		return "", err
	}

	m.counter++

	id := CommitID(fmt.Sprintf("%040x", m.counter))

	files := make(map[string][]byte, len(base.files))
	for path, data := range base.files {
		files[path] = data
	}

	provenance := make(map[string]string)

	for path, state := range req.Files {
		if state.Absent {
			delete(files, path)

			continue
		}

		files[path] = state.Content

		if state.CopiedFrom != "" {
			provenance[path] = state.CopiedFrom
		}
	}

	m.commits[id] = &memCommit{
		id:         id,
		parents:    append([]CommitID(nil), req.Parents...),
		when:       req.When,
		message:    req.Message,
		authorName: req.AuthorName,
		authorMail: req.AuthorEmail,
		files:      files,
		provenance: provenance,
	}

	return id, nil
}

func (m *Mem) commit(id CommitID) (*memCommit, error) {
	c, ok := m.commits[id]
	if !ok {
		return nil, fmt.Errorf("%w: commit %s", ErrNotFound, id)
	}

	return c, nil
}

// sliceAncestorIter serves a precomputed ancestry slice.
type sliceAncestorIter struct {
	ancestry []Ancestor
	idx      int
}

func (it *sliceAncestorIter) Next(_ context.Context) (Ancestor, error) {
	if it.idx >= len(it.ancestry) {
		return Ancestor{}, io.EOF
	}

	a := it.ancestry[it.idx]
	it.idx++

	return a, nil
}

func (it *sliceAncestorIter) Close() {}
