package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type sessionStartRequest struct {
	Name    string `json:"name"`
	Test    string `json:"test"`
	Consent bool   `json:"consent"`
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	test := strings.ToLower(req.Test)
	if test != "fe" && test != "dv" {
		writeError(w, http.StatusBadRequest, "test must be \"fe\" or \"dv\"")
		return
	}
	start := time.Now()
	m, err := s.Sessions.Start(r.Context(), req.Name, test, req.Consent)
	s.Metrics.Observe(r.Context(), "session_start", err == nil, time.Since(start))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": m.SessionID,
		"test_type":  m.TestType,
	})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	m, err := s.Sessions.Get(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSessionFinish(w http.ResponseWriter, r *http.Request) {
	sid := r.PathValue("session_id")
	m, err := s.Sessions.Finish(r.Context(), sid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.Log.Info("session finished", zap.String("session_id", sid))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"finished_at": m.FinishedAt,
	})
}
