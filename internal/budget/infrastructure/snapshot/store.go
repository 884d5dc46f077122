package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	budget "grants-cloud/internal/budget/domain"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("snapshot: none stored")

// Store loads and saves full repository snapshots.
type Store interface {
	Load(ctx context.Context) (*budget.Snapshot, error)
	Save(ctx context.Context, snap *budget.Snapshot) error
}

// FileStore keeps the snapshot in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore constructs a file store.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("snapshot: empty file path")
	}
	return &FileStore{path: path}, nil
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot file.
func (s *FileStore) Load(ctx context.Context) (*budget.Snapshot, error) {
	_ = ctx
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	var snap budget.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", s.path, err)
	}
	return &snap, nil
}

// Save writes the snapshot through a temporary file and a rename, so a
// crash never leaves a truncated file behind.
func (s *FileStore) Save(ctx context.Context, snap *budget.Snapshot) error {
	_ = ctx
	if snap == nil {
		return errors.New("snapshot: nil snapshot")
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.yaml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
