// Package core defines the abstractions shared by every storage backend.
//
// Backends expose a small key-value surface over hierarchical, slash-separated
// paths. Everything higher level (text, JSON, JSONL journals) is layered on
// top in the storage package so that all backends behave identically.
package core

import (
	"context"
	"errors"
)

// Driver identifies a concrete storage backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs" // local filesystem (default, dev)
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3" // S3 / MinIO compatible
	// DriverSQLite represents an embedded sqlite-file implementation.
	DriverSQLite Driver = "sqlite" // single-file embedded store
	// DriverPostgres represents a PostgreSQL-backed implementation.
	DriverPostgres Driver = "postgres" // PostgreSQL server
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory" // in-memory (tests)
)

// ErrNotFound is returned by Read when the path has never been written.
var ErrNotFound = errors.New("storage: path not found")

// Backend is the uniform storage contract. Paths use "/" as separator and
// never start with one. Write overwrites idempotently and creates any parent
// structure implicitly. ListDir returns immediate children only, with
// directory-like entries suffixed by "/"; listing a never-created path yields
// an empty slice, not an error.
type Backend interface {
	Write(ctx context.Context, path string, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	ListDir(ctx context.Context, path string) ([]string, error)
	Driver() Driver
}
