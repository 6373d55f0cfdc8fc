package storage

import (
	"context"
	"fmt"
	"os"

	"vizlab/internal/infra/storage/fs"
	"vizlab/internal/infra/storage/memory"
	"vizlab/internal/infra/storage/postgres"
	"vizlab/internal/infra/storage/s3"
	"vizlab/internal/infra/storage/sqlite"
)

// Open selects a storage Backend using environment variables.
//
//	VIZLAB_STORAGE_DRIVER: fs|s3|sqlite|postgres|memory (default fs)
//	VIZLAB_STORAGE_FS_ROOT: directory root when driver=fs (default ./data)
//	VIZLAB_STORAGE_SQLITE_PATH: sqlite file when driver=sqlite
//	VIZLAB_STORAGE_POSTGRES_DSN: postgres DSN when driver=postgres
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Backend, error) {
	driver := os.Getenv("VIZLAB_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return fs.New(os.Getenv("VIZLAB_STORAGE_FS_ROOT"))
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverSQLite:
		return sqlite.New(os.Getenv("VIZLAB_STORAGE_SQLITE_PATH"))
	case DriverPostgres:
		return postgres.New(ctx, os.Getenv("VIZLAB_STORAGE_POSTGRES_DSN"))
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
