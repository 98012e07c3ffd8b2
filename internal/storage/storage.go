package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrNotFound reports that a dataset has never been saved.
var ErrNotFound = errors.New("dataset not found")

// Store persists whole datasets as JSON files in one directory, one file
// per logical dataset name. A save replaces the entire file; there are no
// partial updates, so a crash can lose at most the delta since the last
// save.
type Store struct {
	fs  afero.Fs
	dir string
}

// New creates the data directory if needed and returns a store rooted
// there.
func New(filesystem afero.Fs, dir string) (*Store, error) {
	if err := filesystem.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return &Store{fs: filesystem, dir: dir}, nil
}

// Load reads the named dataset into out. A dataset that was never saved
// yields ErrNotFound.
func (s *Store) Load(name string, out any) error {
	path := s.path(name)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// Save serializes v and replaces the named dataset. The bytes go to a
// sibling temp file first and land with a rename, so the previous version
// survives a crash mid-write.
func (s *Store) Save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	path := s.path(name)
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
