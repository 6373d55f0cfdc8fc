package snapshot

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"vizlab/internal/infra/storage/memory"
	"vizlab/internal/storage"
)

func TestSaveRunSnapshotIndicesAreMonotonic(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	for want := 1; want <= 3; want++ {
		dir, idx, err := m.SaveRunSnapshot(ctx, "s1", "p1", "code v"+string(rune('0'+want)), 0)
		if err != nil {
			t.Fatalf("save %d: %v", want, err)
		}
		if idx != want {
			t.Fatalf("index = %d, want %d", idx, want)
		}
		if !strings.HasSuffix(dir, "run_000"+string(rune('0'+want))) {
			t.Fatalf("dir = %s", dir)
		}
	}

	var meta RunMeta
	if err := storage.ReadJSON(ctx, store, storage.RunDir("s1", "p1", 2)+"/meta.json", &meta); err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if meta.RunIndex != 2 || meta.Kind != "run" || meta.CodeLen != len("code v2") {
		t.Fatalf("meta = %+v", meta)
	}
}

// Indices are derived from storage, not process memory: a fresh manager over
// the same backend continues the sequence.
func TestRunIndexSurvivesManagerRestart(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	first := NewManager(store, nil)
	if _, _, err := first.SaveRunSnapshot(ctx, "s1", "p1", "a", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := first.SaveRunSnapshot(ctx, "s1", "p1", "b", 0); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := NewManager(store, nil)
	_, idx, err := second.SaveRunSnapshot(ctx, "s1", "p1", "c", 0)
	if err != nil {
		t.Fatalf("save after restart: %v", err)
	}
	if idx != 3 {
		t.Fatalf("index after restart = %d, want 3", idx)
	}
}

func TestRunIndicesIndependentPerProblem(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memory.New(), nil)

	if _, idx, _ := m.SaveRunSnapshot(ctx, "s1", "p1", "a", 0); idx != 1 {
		t.Fatalf("p1 first index = %d", idx)
	}
	if _, idx, _ := m.SaveRunSnapshot(ctx, "s1", "p2", "a", 0); idx != 1 {
		t.Fatalf("p2 first index = %d", idx)
	}
	if _, idx, _ := m.SaveRunSnapshot(ctx, "s2", "p1", "a", 0); idx != 1 {
		t.Fatalf("s2 first index = %d", idx)
	}
}

func TestConcurrentSnapshotsNeverCollide(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	const n = 16
	var wg sync.WaitGroup
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, idx, err := m.SaveRunSnapshot(ctx, "s1", "p1", "body", 0)
			if err != nil {
				t.Errorf("save: %v", err)
				return
			}
			indices[i] = idx
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for _, idx := range indices {
		if idx < 1 || idx > n {
			t.Fatalf("index out of range: %d", idx)
		}
		if seen[idx] {
			t.Fatalf("index %d assigned twice", idx)
		}
		seen[idx] = true
	}
}

func TestSaveSubmitFinalOverwrites(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	if _, err := m.SaveSubmitFinal(ctx, "s1", "p1", "first", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := m.SaveSubmitFinal(ctx, "s1", "p1", "second", map[string]any{"kind": "dv", "stdout": "out"}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	code, err := storage.ReadText(ctx, store, storage.SubmitDir("s1", "p1")+"/final_code.html")
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if code != "second" {
		t.Fatalf("final code = %q, want %q", code, "second")
	}
	var meta map[string]any
	if err := storage.ReadJSON(ctx, store, storage.SubmitDir("s1", "p1")+"/meta.json", &meta); err != nil {
		t.Fatalf("read meta: %v", err)
	}
	// Caller-supplied extra fields win over the defaults on merge.
	if meta["kind"] != "dv" || meta["stdout"] != "out" {
		t.Fatalf("meta = %v", meta)
	}
	if meta["code_len"] != float64(len("second")) {
		t.Fatalf("code_len = %v", meta["code_len"])
	}
}

func TestSaveDiffBetweenRuns(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	prev := "line one\nline two\n"
	next := "line one\nline 2\n"
	if _, err := m.SaveDiffBetweenRuns(ctx, "s1", "p1", prev, next, 1, 2); err != nil {
		t.Fatalf("diff: %v", err)
	}
	patch, err := storage.ReadText(ctx, store, storage.DiffPath("s1", "p1", 1, 2))
	if err != nil {
		t.Fatalf("read patch: %v", err)
	}
	for _, want := range []string{"--- run_0001", "+++ run_0002", "-line two", "+line 2"} {
		if !strings.Contains(patch, want) {
			t.Fatalf("patch missing %q:\n%s", want, patch)
		}
	}
}

func TestLatestRunCode(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memory.New(), nil)

	// No runs yet: recognized initial state, not an error.
	code, idx, err := m.LatestRunCode(ctx, "s1", "p1")
	if err != nil || code != "" || idx != 0 {
		t.Fatalf("latest on empty = %q, %d, %v", code, idx, err)
	}

	if _, _, err := m.SaveRunSnapshot(ctx, "s1", "p1", "v1", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := m.SaveRunSnapshot(ctx, "s1", "p1", "v2", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	code, idx, err = m.LatestRunCode(ctx, "s1", "p1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if code != "v2" || idx != 2 {
		t.Fatalf("latest = %q, %d", code, idx)
	}
}

func TestUnifiedDiffEmptyForIdentical(t *testing.T) {
	patch, err := UnifiedDiff("same\n", "same\n", "a", "b")
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if patch != "" {
		t.Fatalf("identical inputs produced a diff: %q", patch)
	}
}

// meta.json of a run snapshot must decode back into RunMeta via plain JSON.
func TestRunMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)
	if _, _, err := m.SaveRunSnapshot(ctx, "s1", "p1", "body", 0); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := store.Read(ctx, storage.RunDir("s1", "p1", 1)+"/meta.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var meta RunMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.ServerTS == "" {
		t.Fatalf("server_ts missing: %+v", meta)
	}
}
