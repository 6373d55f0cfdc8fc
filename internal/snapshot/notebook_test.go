package snapshot

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"vizlab/internal/infra/storage/memory"
	"vizlab/internal/storage"
)

func TestDiffCells(t *testing.T) {
	cases := []struct {
		name string
		prev []string
		next []string
		want NotebookDiff
	}{
		{
			name: "modified and added",
			prev: []string{"a", "b"},
			next: []string{"a", "x", "c"},
			want: NotebookDiff{AddedCells: 1, RemovedCells: 0, ModifiedCells: []int{1}, TotalChanges: 2},
		},
		{
			name: "identical",
			prev: []string{"a", "b"},
			next: []string{"a", "b"},
			want: NotebookDiff{ModifiedCells: []int{}},
		},
		{
			name: "trailing removed",
			prev: []string{"a", "b", "c"},
			next: []string{"a"},
			want: NotebookDiff{RemovedCells: 2, ModifiedCells: []int{}, TotalChanges: 2},
		},
		{
			name: "all new",
			prev: nil,
			next: []string{"a", "b"},
			want: NotebookDiff{AddedCells: 2, ModifiedCells: []int{}, TotalChanges: 2},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DiffCells(tc.prev, tc.next)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("DiffCells = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestSaveNotebookSnapshotFirstHasNoDiff(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	dir, idx, err := m.SaveNotebookSnapshot(ctx, "s1", "p1", []string{"import x", "plot()"}, "run")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if idx != 1 {
		t.Fatalf("index = %d, want 1", idx)
	}
	ok, err := store.Exists(ctx, dir+"/notebook.json")
	if err != nil || !ok {
		t.Fatalf("notebook.json missing: %v %v", ok, err)
	}
	// First snapshot of a problem has no predecessor, so no diff artifacts.
	for _, name := range []string{"/diff.json", "/changes.txt"} {
		if ok, _ := store.Exists(ctx, dir+name); ok {
			t.Fatalf("%s written for the first snapshot", name)
		}
	}
}

func TestSaveNotebookSnapshotWritesDiffAndNarrative(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	if _, _, err := m.SaveNotebookSnapshot(ctx, "s1", "p1", []string{"a", "b"}, "run"); err != nil {
		t.Fatalf("first save: %v", err)
	}
	dir, idx, err := m.SaveNotebookSnapshot(ctx, "s1", "p1", []string{"a", "x", "c"}, "submit")
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if idx != 2 {
		t.Fatalf("index = %d, want 2", idx)
	}

	var diff NotebookDiff
	if err := storage.ReadJSON(ctx, store, dir+"/diff.json", &diff); err != nil {
		t.Fatalf("read diff: %v", err)
	}
	want := NotebookDiff{AddedCells: 1, ModifiedCells: []int{1}, TotalChanges: 2}
	if !reflect.DeepEqual(diff, want) {
		t.Fatalf("diff = %+v, want %+v", diff, want)
	}

	narrative, err := storage.ReadText(ctx, store, dir+"/changes.txt")
	if err != nil {
		t.Fatalf("read narrative: %v", err)
	}
	for _, wantLine := range []string{
		"Trigger: submit",
		"Changes: 1 modified, 1 added, 0 removed (2 total)",
		"--- Cell 1 [MODIFIED] ---",
		"--- Cell 2 [NEW] ---",
	} {
		if !strings.Contains(narrative, wantLine) {
			t.Fatalf("narrative missing %q:\n%s", wantLine, narrative)
		}
	}
}

func TestLatestNotebook(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	nb, err := m.LatestNotebook(ctx, "s1", "p1")
	if err != nil || nb != nil {
		t.Fatalf("latest on empty = %v, %v", nb, err)
	}

	if _, _, err := m.SaveNotebookSnapshot(ctx, "s1", "p1", []string{"a"}, "run"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := m.SaveNotebookSnapshot(ctx, "s1", "p1", []string{"a", "b"}, "run"); err != nil {
		t.Fatalf("save: %v", err)
	}
	nb, err = m.LatestNotebook(ctx, "s1", "p1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if nb == nil || nb.Index != 2 || !reflect.DeepEqual(nb.Cells, []string{"a", "b"}) {
		t.Fatalf("latest = %+v", nb)
	}
}

// A snapshot that exists but does not decode is corruption, not absence.
func TestLatestNotebookCorruptIsHardError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	path := storage.NotebookRunDir("s1", "p1", 1) + "/notebook.json"
	if _, err := store.Write(ctx, path, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := m.LatestNotebook(ctx, "s1", "p1"); err == nil {
		t.Fatalf("corrupt notebook read succeeded")
	}
}

func TestSaveNotebookFinalOverwrites(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := NewManager(store, nil)

	if _, err := m.SaveNotebookFinal(ctx, "s1", "p1", []string{"old"}, nil); err != nil {
		t.Fatalf("final: %v", err)
	}
	if _, err := m.SaveNotebookFinal(ctx, "s1", "p1", []string{"new", "cells"}, map[string]any{"trigger": "submit"}); err != nil {
		t.Fatalf("refinal: %v", err)
	}

	var nb Notebook
	if err := storage.ReadJSON(ctx, store, storage.SubmitDir("s1", "p1")+"/notebook.json", &nb); err != nil {
		t.Fatalf("read final: %v", err)
	}
	if !reflect.DeepEqual(nb.Cells, []string{"new", "cells"}) {
		t.Fatalf("final cells = %v", nb.Cells)
	}
	var meta map[string]any
	if err := storage.ReadJSON(ctx, store, storage.SubmitDir("s1", "p1")+"/meta.json", &meta); err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if meta["kind"] != "submit" || meta["cells"] != float64(2) || meta["trigger"] != "submit" {
		t.Fatalf("meta = %v", meta)
	}
	if _, err := m.LatestNotebook(ctx, "s1", "p1"); err != nil {
		t.Fatalf("latest after final: %v", err)
	}
}
