package review

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed revision.schema.json
var revisionSchema []byte

// ErrSchemaViolation is returned when a payload file fails schema validation.
var ErrSchemaViolation = errors.New("revision payload failed schema validation")

// FileSource reads revision payloads exported from a review server to disk.
// JSON and YAML files are supported; payloads are validated against the
// revision schema before decoding.
type FileSource struct {
	revisions map[RevisionID]*Revision
}

// NewFileSource loads the given payload files.
func NewFileSource(paths ...string) (*FileSource, error) {
	src := &FileSource{revisions: make(map[RevisionID]*Revision, len(paths))}

	for _, path := range paths {
		rev, err := loadRevisionFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}

		src.revisions[rev.ID] = rev
	}

	return src, nil
}

// GetRevision returns the revision with the given id.
func (s *FileSource) GetRevision(_ context.Context, id RevisionID) (*Revision, error) {
	rev, ok := s.revisions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchRevision, id)
	}

	return rev, nil
}

// Revisions returns the ids of all loaded revisions.
func (s *FileSource) Revisions() []RevisionID {
	ids := make([]RevisionID, 0, len(s.revisions))
	for id := range s.revisions {
		ids = append(ids, id)
	}

	return ids
}

func loadRevisionFile(path string) (*Revision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, err
		}
	}

	err = validatePayload(data)
	if err != nil {
		return nil, err
	}

	return DecodeRevision(data)
}

// yamlToJSON converts a YAML payload to JSON so validation and decoding
// share one code path.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml to json: %w", err)
	}

	return out, nil
}

func validatePayload(data []byte) error {
	schema := gojsonschema.NewBytesLoader(revisionSchema)
	document := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}
