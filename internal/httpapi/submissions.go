package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// flexID accepts both string and numeric problem identifiers on the wire;
// frontend-build problems use ints, data-visualization problems strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	return fmt.Errorf("problem_id must be a string or number")
}

type submissionIn struct {
	SessionID string `json:"session_id"`
	ProblemID flexID `json:"problem_id"`
	Code      string `json:"code"`
}

func (in submissionIn) valid(w http.ResponseWriter) bool {
	if in.SessionID == "" || in.ProblemID == "" {
		writeError(w, http.StatusBadRequest, "session_id and problem_id are required")
		return false
	}
	return true
}

func (s *Server) handleSubmitFE(w http.ResponseWriter, r *http.Request) {
	var in submissionIn
	if !decodeJSON(w, r, &in) || !in.valid(w) {
		return
	}
	ctx := r.Context()
	pid := string(in.ProblemID)
	if _, err := s.Sessions.EnsureTestType(ctx, in.SessionID, "fe"); err != nil {
		writeServiceError(w, err)
		return
	}
	start := time.Now()
	_, err := s.Snapshots.SaveSubmitFinal(ctx, in.SessionID, pid, in.Code, nil)
	s.Metrics.Observe(ctx, "submit_fe", err == nil, time.Since(start))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.logEvent(ctx, in.SessionID, "submission_saved", map[string]any{
		"problem_id": pid,
		"bytes":      len(in.Code),
		"kind":       "fe",
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleSnapshotFE persists one run snapshot and, when a previous run exists,
// the unified diff from it.
func (s *Server) handleSnapshotFE(w http.ResponseWriter, r *http.Request) {
	var in submissionIn
	if !decodeJSON(w, r, &in) || !in.valid(w) {
		return
	}
	ctx := r.Context()
	pid := string(in.ProblemID)
	if _, err := s.Sessions.EnsureTestType(ctx, in.SessionID, "fe"); err != nil {
		writeServiceError(w, err)
		return
	}
	start := time.Now()
	prevCode, _, err := s.Snapshots.LatestRunCode(ctx, in.SessionID, pid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_, idx, err := s.Snapshots.SaveRunSnapshot(ctx, in.SessionID, pid, in.Code, 0)
	s.Metrics.Observe(ctx, "snapshot_fe", err == nil, time.Since(start))
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
	s.logEvent(ctx, in.SessionID, "run_snapshot", map[string]any{
		"problem_id": pid,
		"bytes":      len(in.Code),
		"kind":       "fe",
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"saved":  fmt.Sprintf("run_%04d", idx),
	})
}

func (s *Server) handleSubmitDV(w http.ResponseWriter, r *http.Request) {
	var in submissionIn
	if !decodeJSON(w, r, &in) || !in.valid(w) {
		return
	}
	ctx := r.Context()
	pid := string(in.ProblemID)
	if _, err := s.Sessions.EnsureTestType(ctx, in.SessionID, "dv"); err != nil {
		writeServiceError(w, err)
		return
	}
	start := time.Now()
	_, err := s.Snapshots.SaveSubmitFinal(ctx, in.SessionID, pid, in.Code, map[string]any{"kind": "dv"})
	s.Metrics.Observe(ctx, "submit_dv", err == nil, time.Since(start))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.logEvent(ctx, in.SessionID, "submission_saved_dv", map[string]any{
		"problem_id": pid,
		"bytes":      len(in.Code),
		"kind":       "dv",
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// logEvent appends a server-side telemetry event; journal failures are logged
// but never fail the request that produced them.
func (s *Server) logEvent(ctx context.Context, sessionID, eventType string, payload map[string]any) {
	record := map[string]any{
		"event_type": eventType,
		"payload":    payload,
		"client_ts":  time.Now().UnixMilli(),
	}
	if err := s.Journal.AppendEvent(ctx, sessionID, record); err != nil {
		s.Log.Warn("server-side event append failed",
			zap.String("session_id", sessionID),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}
