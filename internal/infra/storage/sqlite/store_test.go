package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"vizlab/internal/storage/core"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "objects.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Write(ctx, "sessions/s1/session.json", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	data, err := reopened.Read(ctx, "sessions/s1/session.json")
	if err != nil {
		t.Fatalf("read after reopen: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("content after reopen = %q", data)
	}
}

func TestStoreUpsertAndNotFound(t *testing.T) {
	ctx := context.Background()
	store, err := New(filepath.Join(t.TempDir(), "objects.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()

	if _, err := store.Read(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("read missing = %v, want ErrNotFound", err)
	}
	if _, err := store.Write(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Write(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	data, err := store.Read(ctx, "k")
	if err != nil || string(data) != "v2" {
		t.Fatalf("read = %q, %v", data, err)
	}
}
