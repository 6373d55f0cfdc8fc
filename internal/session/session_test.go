package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vizlab/internal/infra/storage/memory"
)

func TestStartAndGet(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	m, err := svc.Start(ctx, "Alice", "FE", true)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.SessionID == "" {
		t.Fatalf("empty session id")
	}
	if m.TestType != "fe" {
		t.Fatalf("test type = %q, want lowercased fe", m.TestType)
	}
	if !m.Consent || m.CreatedAt == "" || m.FinishedAt != nil {
		t.Fatalf("manifest = %+v", m)
	}

	got, err := svc.Get(ctx, m.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SessionID != m.SessionID || got.Name == nil || *got.Name != "Alice" {
		t.Fatalf("get = %+v", got)
	}
}

func TestGetUnknownSession(t *testing.T) {
	svc := NewService(memory.New(), nil)
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get unknown = %v, want ErrNotFound", err)
	}
	if _, err := svc.Finish(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("finish unknown = %v, want ErrNotFound", err)
	}
}

func TestFinishStampsTimestamp(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	m, err := svc.Start(ctx, "Bob", "dv", false)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	finished, err := svc.Finish(ctx, m.SessionID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if finished.FinishedAt == nil || *finished.FinishedAt == "" {
		t.Fatalf("finished_at not set: %+v", finished)
	}
}

func TestEnsureTestTypeLazyCreate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	m, err := svc.EnsureTestType(ctx, "client-generated-id", "dv")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if m.SessionID != "client-generated-id" || m.TestType != "dv" {
		t.Fatalf("lazy manifest = %+v", m)
	}

	// Second ensure with the same type passes through.
	if _, err := svc.EnsureTestType(ctx, "client-generated-id", "DV"); err != nil {
		t.Fatalf("ensure same type: %v", err)
	}
}

func TestEnsureTestTypeLockConflict(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil)

	started, err := svc.Start(ctx, "Carol", "fe", true)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = svc.EnsureTestType(ctx, started.SessionID, "dv")
	var conflict LockConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("ensure mismatched = %v, want LockConflictError", err)
	}
	if conflict.Locked != "fe" || conflict.Intended != "dv" {
		t.Fatalf("conflict = %+v", conflict)
	}
	if !strings.Contains(conflict.Error(), "FE") || !strings.Contains(conflict.Error(), "DV") {
		t.Fatalf("conflict message = %q", conflict.Error())
	}

	// Session state is untouched by the rejected operation.
	m, err := svc.Get(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("get after conflict: %v", err)
	}
	if m.TestType != "fe" || m.Name == nil || *m.Name != "Carol" {
		t.Fatalf("manifest changed by rejected op: %+v", m)
	}
}
