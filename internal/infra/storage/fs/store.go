// Package fs implements the storage Backend on the local filesystem.
package fs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"vizlab/internal/storage/core"
)

// Store maps storage paths to files under a root directory. Writes overwrite
// in place via a temp file + rename so readers never observe a partial file.
type Store struct {
	root string
}

// New returns a filesystem-backed store rooted at path, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the base directory of the store.
func (s *Store) Root() string { return s.root }

func (s *Store) pathFor(p string) (string, error) {
	clean, err := core.CleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Write stores data at path, creating parent directories implicitly and
// overwriting any previous content.
func (s *Store) Write(_ context.Context, p string, data []byte) (string, error) {
	full, err := s.pathFor(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", err
	}
	return full, nil
}

// Read returns the content at path or core.ErrNotFound.
func (s *Store) Read(_ context.Context, p string) ([]byte, error) {
	full, err := s.pathFor(p)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Exists reports whether path has been written. Absence is not an error.
func (s *Store) Exists(_ context.Context, p string) (bool, error) {
	full, err := s.pathFor(p)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// ListDir returns the immediate children of path, directories suffixed with
// "/". A never-created path yields an empty slice.
func (s *Store) ListDir(_ context.Context, p string) ([]string, error) {
	full, err := s.pathFor(p)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
