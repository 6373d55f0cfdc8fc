// Package postgres implements the storage Backend on a PostgreSQL server,
// mirroring the sqlite backend's single-table layout.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"vizlab/internal/storage/core"
)

const defaultDSN = "postgres://localhost/vizlab?sslmode=disable"

// Store implements core.Backend over a Postgres objects table.
type Store struct {
	db *sql.DB
}

// New opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN) and ensures the objects table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS objects (
		path TEXT PRIMARY KEY,
		payload BYTEA NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create objects table: %w", err)
	}
	return &Store{db: db}, nil
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverPostgres }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Write upserts data under path.
func (s *Store) Write(ctx context.Context, p string, data []byte) (string, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO objects(path, payload) VALUES($1, $2)
		 ON CONFLICT(path) DO UPDATE SET payload = EXCLUDED.payload`, key, data)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return "postgres://" + key, nil
}

// Read returns the payload at path or core.ErrNotFound.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	key, err := core.CleanPath(p)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM objects WHERE path = $1`, key).Scan(&payload)
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
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE path = $1`, key).Scan(&one)
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
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM objects WHERE path LIKE $1`, dir+"/%")
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
