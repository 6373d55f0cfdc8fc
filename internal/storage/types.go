// Package storage re-exports the core backend abstractions for stable
// imports and layers the shared encodings (text, JSON, JSONL journals) on top
// so every backend behaves identically.
package storage

import (
	"vizlab/internal/storage/core"
)

type (
	// Driver identifies a storage backend driver.
	Driver = core.Driver
	// Backend is the interface for storage backends.
	Backend = core.Backend
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverSQLite is the embedded sqlite driver.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres is the PostgreSQL driver.
	DriverPostgres = core.DriverPostgres
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrNotFound indicates a read of a never-written path.
var ErrNotFound = core.ErrNotFound
