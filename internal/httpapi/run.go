package httpapi

import (
	"fmt"
	"net/http"
	"time"
)

type runIn struct {
	SessionID string `json:"session_id"`
	ProblemID flexID `json:"problem_id"`
	Code      string `json:"code"`
}

type runCellsIn struct {
	SessionID string   `json:"session_id"`
	ProblemID flexID   `json:"problem_id"`
	Cells     []string `json:"cells"`
	Trigger   string   `json:"trigger"`
}

// handleRunDV executes one code body in the sandbox, persists the run
// snapshot (with the diff from the previous run when one exists) and returns
// the captured output. User-code faults come back in stderr, never as HTTP
// errors.
func (s *Server) handleRunDV(w http.ResponseWriter, r *http.Request) {
	var in runIn
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.SessionID == "" || in.ProblemID == "" {
		writeError(w, http.StatusBadRequest, "session_id and problem_id are required")
		return
	}
	ctx := r.Context()
	pid := string(in.ProblemID)
	if _, err := s.Sessions.EnsureTestType(ctx, in.SessionID, "dv"); err != nil {
		writeServiceError(w, err)
		return
	}

	start := time.Now()
	result, err := s.Sandbox.RunSingle(ctx, in.Code)
	s.Metrics.Observe(ctx, "sandbox_run", err == nil, time.Since(start))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "execution backend failed: "+err.Error())
		return
	}

	prevCode, _, err := s.Snapshots.LatestRunCode(ctx, in.SessionID, pid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, idx, err := s.Snapshots.SaveRunSnapshot(ctx, in.SessionID, pid, in.Code, 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if prevCode != "" && idx > 1 {
		if _, err := s.Snapshots.SaveDiffBetweenRuns(ctx, in.SessionID, pid, prevCode, in.Code, idx-1, idx); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	s.logEvent(ctx, in.SessionID, "run_dv", map[string]any{
		"problem_id": pid,
		"bytes":      len(in.Code),
		"has_plot":   result.Plot != nil,
		"run_index":  idx,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"stdout": result.Stdout,
		"stderr": result.Stderr,
		"plot":   result.Plot,
		"saved":  fmt.Sprintf("run_%04d", idx),
	})
}

// handleRunDVCells executes an ordered cell list in one shared namespace and
// persists a notebook snapshot with the cell diff from the previous one.
func (s *Server) handleRunDVCells(w http.ResponseWriter, r *http.Request) {
	var in runCellsIn
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.SessionID == "" || in.ProblemID == "" {
		writeError(w, http.StatusBadRequest, "session_id and problem_id are required")
		return
	}
	if len(in.Cells) == 0 {
		writeError(w, http.StatusBadRequest, "empty cells list")
		return
	}
	ctx := r.Context()
	pid := string(in.ProblemID)
	if _, err := s.Sessions.EnsureTestType(ctx, in.SessionID, "dv"); err != nil {
		writeServiceError(w, err)
		return
	}

	start := time.Now()
	results, err := s.Sandbox.RunCells(ctx, in.Cells)
	s.Metrics.Observe(ctx, "sandbox_run_cells", err == nil, time.Since(start))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "execution backend failed: "+err.Error())
		return
	}

	trigger := in.Trigger
	if trigger == "" {
		trigger = "run_cells"
	}
	_, idx, err := s.Snapshots.SaveNotebookSnapshot(ctx, in.SessionID, pid, in.Cells, trigger)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.logEvent(ctx, in.SessionID, "run_dv_cells", map[string]any{
		"problem_id": pid,
		"cells":      len(in.Cells),
		"nb_index":   idx,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"saved":   fmt.Sprintf("nb_run_%04d", idx),
	})
}
