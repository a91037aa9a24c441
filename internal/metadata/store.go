package metadata

import (
	"context"
	"encoding/json"
	"fmt"
)

// Files is the filesystem surface the store needs.
type Files interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(path string) ([]byte, error)
	Exists(path string) bool
}

// Store persists records as indented JSON through an atomic writer.
type Store struct {
	files Files
}

// NewStore wraps files.
func NewStore(files Files) *Store {
	return &Store{files: files}
}

// Exists reports whether a record is already on disk at path.
func (s *Store) Exists(path string) bool {
	return s.files.Exists(path)
}

// Save writes r to path. The previous file, if any, is replaced atomically.
func (s *Store) Save(ctx context.Context, path string, r *Record) error {
	if err := ValidateTypeSpecific(r.ContentType, r.TypeSpecific); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata %s: %w", r.UID, err)
	}
	data = append(data, '\n')
	if err := s.files.WriteFile(ctx, path, data); err != nil {
		return fmt.Errorf("save metadata %s: %w", r.UID, err)
	}
	return nil
}

// Load reads the record at path.
func (s *Store) Load(path string) (*Record, error) {
	data, err := s.files.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", path, err)
	}
	if r.TypeSpecific == nil {
		r.TypeSpecific = map[string]any{}
	}
	return &r, nil
}
