package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"vizlab/internal/storage"
)

var nbRunDirRe = regexp.MustCompile(`^nb_run_(\d{4})/?$`)

// Notebook is an ordered sequence of code cells captured at one point in time.
type Notebook struct {
	ServerTS string   `json:"server_ts"`
	Index    int      `json:"index"`
	Trigger  string   `json:"trigger,omitempty"`
	Cells    []string `json:"cells"`
}

// NotebookDiff is the structured cell-change summary between two consecutive
// notebook snapshots. Cell equality is exact source-string match per position;
// cells beyond the shorter list count as pure additions or removals.
type NotebookDiff struct {
	AddedCells    int   `json:"added_cells"`
	RemovedCells  int   `json:"removed_cells"`
	ModifiedCells []int `json:"modified_cells"`
	TotalChanges  int   `json:"total_changes"`
}

// DiffCells compares two cell lists position by position.
func DiffCells(prev, next []string) NotebookDiff {
	d := NotebookDiff{ModifiedCells: []int{}}
	common := len(prev)
	if len(next) < common {
		common = len(next)
	}
	for i := 0; i < common; i++ {
		if prev[i] != next[i] {
			d.ModifiedCells = append(d.ModifiedCells, i)
		}
	}
	if len(next) > len(prev) {
		d.AddedCells = len(next) - len(prev)
	} else {
		d.RemovedCells = len(prev) - len(next)
	}
	d.TotalChanges = len(d.ModifiedCells) + d.AddedCells + d.RemovedCells
	return d
}

// NextNotebookIndex returns the next free nb_run index for a problem.
func (m *Manager) NextNotebookIndex(ctx context.Context, sessionID, problemID string) (int, error) {
	return m.nextIndex(ctx, storage.NotebookRunsDir(sessionID, problemID), nbRunDirRe)
}

// LatestNotebook returns the most recent notebook snapshot, or nil when the
// problem has none yet (a recognized state, not an error). A snapshot that
// exists but cannot be decoded is a hard error: corruption is a
// data-integrity signal distinct from absence.
func (m *Manager) LatestNotebook(ctx context.Context, sessionID, problemID string) (*Notebook, error) {
	entries, err := m.store.ListDir(ctx, storage.NotebookRunsDir(sessionID, problemID))
	if err != nil {
		return nil, err
	}
	latest := 0
	for _, name := range entries {
		matches := nbRunDirRe.FindStringSubmatch(name)
		if matches == nil {
			continue
		}
		if idx, err := strconv.Atoi(matches[1]); err == nil && idx > latest {
			latest = idx
		}
	}
	if latest == 0 {
		return nil, nil
	}
	var nb Notebook
	path := storage.NotebookRunDir(sessionID, problemID, latest) + "/notebook.json"
	if err := storage.ReadJSON(ctx, m.store, path, &nb); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read notebook %04d: %w", latest, err)
	}
	return &nb, nil
}

// SaveNotebookSnapshot persists one immutable notebook snapshot plus, when a
// predecessor exists, the structured cell diff and a human-readable change
// narrative. The first snapshot of a problem skips the diff step.
func (m *Manager) SaveNotebookSnapshot(ctx context.Context, sessionID, problemID string, cells []string, trigger string) (string, int, error) {
	lane := m.lane(sessionID, problemID)
	lane.Lock()
	defer lane.Unlock()

	prev, err := m.LatestNotebook(ctx, sessionID, problemID)
	if err != nil {
		return "", 0, err
	}
	idx, err := m.NextNotebookIndex(ctx, sessionID, problemID)
	if err != nil {
		return "", 0, err
	}
	dir := storage.NotebookRunDir(sessionID, problemID, idx)
	nb := Notebook{
		ServerTS: storage.UTCNowISO(),
		Index:    idx,
		Trigger:  trigger,
		Cells:    cells,
	}
	if _, err := storage.WriteJSON(ctx, m.store, dir+"/notebook.json", nb); err != nil {
		return "", 0, err
	}
	if prev != nil {
		diff := DiffCells(prev.Cells, cells)
		if _, err := storage.WriteJSON(ctx, m.store, dir+"/diff.json", diff); err != nil {
			return "", 0, err
		}
		narrative := notebookNarrative(trigger, prev.Cells, cells, diff)
		if _, err := storage.WriteText(ctx, m.store, dir+"/changes.txt", narrative); err != nil {
			return "", 0, err
		}
	}
	m.log.Debug("notebook snapshot saved",
		zap.String("session_id", sessionID),
		zap.String("problem_id", problemID),
		zap.Int("nb_index", idx),
		zap.Int("cells", len(cells)))
	return dir, idx, nil
}

// SaveNotebookFinal persists the authoritative final notebook for a problem,
// overwriting any previous submission. extra is merged into the metadata.
func (m *Manager) SaveNotebookFinal(ctx context.Context, sessionID, problemID string, cells []string, extra map[string]any) (string, error) {
	dir := storage.SubmitDir(sessionID, problemID)
	nb := Notebook{ServerTS: storage.UTCNowISO(), Cells: cells}
	if _, err := storage.WriteJSON(ctx, m.store, dir+"/notebook.json", nb); err != nil {
		return "", err
	}
	total := 0
	for _, c := range cells {
		total += len(c)
	}
	meta := map[string]any{
		"server_ts": storage.UTCNowISO(),
		"cells":     len(cells),
		"code_len":  total,
		"kind":      "submit",
	}
	for k, v := range extra {
		meta[k] = v
	}
	if _, err := storage.WriteJSON(ctx, m.store, dir+"/meta.json", meta); err != nil {
		return "", err
	}
	return dir, nil
}

// notebookNarrative renders the change summary a human reviewer reads instead
// of the structured diff: what triggered the snapshot, then every touched
// cell with a MODIFIED/NEW marker and its full body.
func notebookNarrative(trigger string, prev, next []string, diff NotebookDiff) string {
	var b strings.Builder
	if trigger == "" {
		trigger = "unknown"
	}
	fmt.Fprintf(&b, "Trigger: %s\n", trigger)
	fmt.Fprintf(&b, "Changes: %d modified, %d added, %d removed (%d total)\n",
		len(diff.ModifiedCells), diff.AddedCells, diff.RemovedCells, diff.TotalChanges)
	modified := make(map[int]bool, len(diff.ModifiedCells))
	for _, i := range diff.ModifiedCells {
		modified[i] = true
	}
	for i, cell := range next {
		switch {
		case i >= len(prev):
			fmt.Fprintf(&b, "\n--- Cell %d [NEW] ---\n%s\n", i, cell)
		case modified[i]:
			fmt.Fprintf(&b, "\n--- Cell %d [MODIFIED] ---\n%s\n", i, cell)
		}
	}
	if diff.RemovedCells > 0 {
		fmt.Fprintf(&b, "\n(%d trailing cell(s) removed)\n", diff.RemovedCells)
	}
	return b.String()
}
