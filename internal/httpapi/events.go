package httpapi

import (
	"net/http"
	"strings"
	"time"
)

type eventIn struct {
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload"`
	ClientTS  int64          `json:"client_ts"`
	TestType  string         `json:"test_type"` // optional, for the first auto-lock
}

type eventsBulkIn struct {
	SessionID string    `json:"session_id"`
	Events    []eventIn `json:"events"`
}

// guessTypeFromEvent infers fe/dv intent from the event name when the client
// did not say. Empty means no opinion.
func guessTypeFromEvent(name string) string {
	n := strings.ToLower(name)
	if strings.Contains(n, "dv") {
		return "dv"
	}
	if strings.Contains(n, "fe") {
		return "fe"
	}
	return ""
}

func intendedType(ev eventIn) string {
	if ev.TestType != "" {
		return ev.TestType
	}
	if t := guessTypeFromEvent(ev.EventType); t != "" {
		return t
	}
	return "fe"
}

func (ev eventIn) record(sessionID string) map[string]any {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	ts := ev.ClientTS
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return map[string]any{
		"event_type": ev.EventType,
		"payload":    payload,
		"client_ts":  ts,
		"session_id": sessionID,
	}
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev eventIn
	if !decodeJSON(w, r, &ev) {
		return
	}
	if ev.SessionID == "" || ev.EventType == "" {
		writeError(w, http.StatusBadRequest, "session_id and event_type are required")
		return
	}
	if _, err := s.Sessions.EnsureTestType(r.Context(), ev.SessionID, intendedType(ev)); err != nil {
		writeServiceError(w, err)
		return
	}
	start := time.Now()
	err := s.Journal.AppendEvent(r.Context(), ev.SessionID, ev.record(ev.SessionID))
	s.Metrics.Observe(r.Context(), "event_append", err == nil, time.Since(start))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleEventsBulk(w http.ResponseWriter, r *http.Request) {
	var body eventsBulkIn
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if len(body.Events) == 0 {
		writeError(w, http.StatusBadRequest, "empty events list")
		return
	}
	// The first event of the batch decides the intended lock type.
	if _, err := s.Sessions.EnsureTestType(r.Context(), body.SessionID, intendedType(body.Events[0])); err != nil {
		writeServiceError(w, err)
		return
	}
	records := make([]map[string]any, 0, len(body.Events))
	for _, ev := range body.Events {
		records = append(records, ev.record(body.SessionID))
	}
	start := time.Now()
	err := s.Journal.AppendEvents(r.Context(), body.SessionID, records)
	s.Metrics.Observe(r.Context(), "event_append_bulk", err == nil, time.Since(start))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "count": len(records)})
}
