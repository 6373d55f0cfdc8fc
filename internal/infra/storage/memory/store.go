// Package memory implements an in-memory storage Backend for tests.
package memory

import (
	"context"
	"sync"

	"vizlab/internal/storage/core"
)

// Store implements core.Backend backed by process memory. Intended for tests.
type Store struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

// New returns an in-memory storage backend.
func New() *Store { return &Store{objs: make(map[string][]byte)} }

// Driver returns the storage driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Write stores data under path, overwriting any previous content.
func (s *Store) Write(_ context.Context, p string, data []byte) (string, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return "", err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.objs[key] = cp
	s.mu.Unlock()
	return "memory://" + key, nil
}

// Read returns the content at path or core.ErrNotFound.
func (s *Store) Read(_ context.Context, p string) ([]byte, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Exists reports whether path has been written.
func (s *Store) Exists(_ context.Context, p string) (bool, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.objs[key]
	s.mu.RUnlock()
	return ok, nil
}

// ListDir derives immediate children from the flat key namespace.
func (s *Store) ListDir(_ context.Context, p string) ([]string, error) {
	dir, err := core.CleanPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	keys := make([]string, 0, len(s.objs))
	for k := range s.objs {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	return core.ChildrenOf(dir, keys), nil
}
