package httpapi

import (
	"net/http"
	"time"

	"vizlab/internal/storage"
)

type surveyIn struct {
	SessionID string         `json:"session_id"`
	Answers   map[string]any `json:"answers"`
}

func (s *Server) handleSurveySubmit(w http.ResponseWriter, r *http.Request) {
	var in surveyIn
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	doc := map[string]any{
		"ts":      time.Now().UnixMilli(),
		"answers": in.Answers,
	}
	if _, err := storage.WriteJSON(r.Context(), s.Store, storage.SurveyPath(in.SessionID), doc); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
