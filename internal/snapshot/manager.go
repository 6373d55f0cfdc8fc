// Package snapshot persists the append-only code history of a problem: run
// snapshots, final submissions and derived diffs between consecutive runs.
package snapshot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"vizlab/internal/storage"
)

var runDirRe = regexp.MustCompile(`^run_(\d{4})/?$`)

// RunMeta is the metadata record written beside every run snapshot.
type RunMeta struct {
	ServerTS string `json:"server_ts"`
	RunIndex int    `json:"run_index"`
	CodeLen  int    `json:"code_len"`
	Kind     string `json:"kind"`
}

// Manager writes snapshots, submissions and diffs through a storage backend.
// Index allocation is serialized per (session, problem) so concurrent runs
// from one participant cannot race to the same index.
type Manager struct {
	store storage.Backend
	log   *zap.Logger

	mu    sync.Mutex
	lanes map[string]*sync.Mutex
}

// NewManager constructs a snapshot manager over the given backend.
func NewManager(store storage.Backend, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: store, log: log, lanes: make(map[string]*sync.Mutex)}
}

func (m *Manager) lane(sessionID, problemID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionID + "/" + problemID
	l, ok := m.lanes[key]
	if !ok {
		l = &sync.Mutex{}
		m.lanes[key] = l
	}
	return l
}

// NextRunIndex scans existing run folders for the maximum numeric index and
// returns max+1, starting at 1. The index is derived from storage, never from
// memory, so it survives restarts.
func (m *Manager) NextRunIndex(ctx context.Context, sessionID, problemID string) (int, error) {
	return m.nextIndex(ctx, storage.RunsDir(sessionID, problemID), runDirRe)
}

func (m *Manager) nextIndex(ctx context.Context, dir string, re *regexp.Regexp) (int, error) {
	entries, err := m.store.ListDir(ctx, dir)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", dir, err)
	}
	maxIdx := 0
	for _, name := range entries {
		matches := re.FindStringSubmatch(name)
		if matches == nil {
			continue
		}
		idx, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	return maxIdx + 1, nil
}

// SaveRunSnapshot persists one immutable run snapshot and returns its
// location and index. When explicitIndex is zero the next free index is
// allocated; an existing index is never reused or overwritten.
func (m *Manager) SaveRunSnapshot(ctx context.Context, sessionID, problemID, code string, explicitIndex int) (string, int, error) {
	lane := m.lane(sessionID, problemID)
	lane.Lock()
	defer lane.Unlock()

	idx := explicitIndex
	if idx <= 0 {
		var err error
		idx, err = m.NextRunIndex(ctx, sessionID, problemID)
		if err != nil {
			return "", 0, err
		}
	}
	dir := storage.RunDir(sessionID, problemID, idx)
	if _, err := storage.WriteText(ctx, m.store, dir+"/code.html", code); err != nil {
		return "", 0, err
	}
	meta := RunMeta{
		ServerTS: storage.UTCNowISO(),
		RunIndex: idx,
		CodeLen:  len(code),
		Kind:     "run",
	}
	if _, err := storage.WriteJSON(ctx, m.store, dir+"/meta.json", meta); err != nil {
		return "", 0, err
	}
	m.log.Debug("run snapshot saved",
		zap.String("session_id", sessionID),
		zap.String("problem_id", problemID),
		zap.Int("run_index", idx))
	return dir, idx, nil
}

// SaveSubmitFinal persists the single authoritative final submission for a
// problem, overwriting any previous one. extra is merged into the metadata
// record (e.g. the last execution's stdout/stderr/plot for DV problems).
func (m *Manager) SaveSubmitFinal(ctx context.Context, sessionID, problemID, code string, extra map[string]any) (string, error) {
	dir := storage.SubmitDir(sessionID, problemID)
	if _, err := storage.WriteText(ctx, m.store, dir+"/final_code.html", code); err != nil {
		return "", err
	}
	meta := map[string]any{
		"server_ts": storage.UTCNowISO(),
		"code_len":  len(code),
		"kind":      "submit",
	}
	for k, v := range extra {
		meta[k] = v
	}
	if _, err := storage.WriteJSON(ctx, m.store, dir+"/meta.json", meta); err != nil {
		return "", err
	}
	m.log.Debug("final submission saved",
		zap.String("session_id", sessionID),
		zap.String("problem_id", problemID),
		zap.Int("code_len", len(code)))
	return dir, nil
}

// SaveDiffBetweenRuns computes a unified diff (3 context lines) between two
// run bodies and persists it keyed by the index pair. Purely derived data,
// recomputable from the snapshots at any time.
func (m *Manager) SaveDiffBetweenRuns(ctx context.Context, sessionID, problemID, prevCode, nextCode string, idxFrom, idxTo int) (string, error) {
	text, err := UnifiedDiff(prevCode, nextCode,
		fmt.Sprintf("run_%04d", idxFrom), fmt.Sprintf("run_%04d", idxTo))
	if err != nil {
		return "", err
	}
	return storage.WriteText(ctx, m.store, storage.DiffPath(sessionID, problemID, idxFrom, idxTo), text)
}

// LatestRunCode returns the code and index of the most recent run snapshot.
// A problem with no runs yet returns ("", 0, nil): a recognized initial
// state, not an error. A run folder whose code cannot be read is a hard
// error, since that signals corruption rather than absence.
func (m *Manager) LatestRunCode(ctx context.Context, sessionID, problemID string) (string, int, error) {
	entries, err := m.store.ListDir(ctx, storage.RunsDir(sessionID, problemID))
	if err != nil {
		return "", 0, err
	}
	latest := 0
	for _, name := range entries {
		matches := runDirRe.FindStringSubmatch(name)
		if matches == nil {
			continue
		}
		if idx, err := strconv.Atoi(matches[1]); err == nil && idx > latest {
			latest = idx
		}
	}
	if latest == 0 {
		return "", 0, nil
	}
	code, err := storage.ReadText(ctx, m.store, storage.RunDir(sessionID, problemID, latest)+"/code.html")
	if err != nil {
		return "", 0, fmt.Errorf("read run %04d: %w", latest, err)
	}
	return code, latest, nil
}
