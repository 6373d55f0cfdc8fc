// Package sqlite implements the storage Backend on an embedded SQLite file.
// Objects live in a single table keyed by path; directory listings are derived
// from key prefixes the same way the object-store backends do it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"vizlab/internal/storage/core"
)

// Store implements core.Backend over a sqlite database file.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the database at path and ensures the objects table.
func New(path string) (*Store, error) {
	if path == "" {
		path = "vizlab.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS objects (
		path TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create objects table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverSQLite }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle (tests).
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Write upserts data under path.
func (s *Store) Write(ctx context.Context, p string, data []byte) (string, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO objects(path, payload) VALUES(?, ?)
		 ON CONFLICT(path) DO UPDATE SET payload=excluded.payload`, key, data)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return "sqlite://" + key, nil
}

// Read returns the payload at path or core.ErrNotFound.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM objects WHERE path = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return payload, nil
}

// Exists reports whether path has been written.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE path = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListDir derives immediate children from keys under the path prefix.
func (s *Store) ListDir(ctx context.Context, p string) ([]string, error) {
	dir, err := core.CleanPath(p)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM objects WHERE path LIKE ?`, dir+"/%")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return core.ChildrenOf(dir, keys), nil
}
