// Package httpapi exposes the collection backend over HTTP: session
// lifecycle, telemetry ingestion, run/submit pipelines for both test types,
// the chat assistant (REST and WebSocket), recording upload, and survey
// intake.
package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"vizlab/internal/llm"
	"vizlab/internal/metrics"
	"vizlab/internal/sandbox"
	"vizlab/internal/session"
	"vizlab/internal/snapshot"
	"vizlab/internal/storage"
	"vizlab/internal/telemetry"
)

// Server wires the HTTP surface to the backend services.
type Server struct {
	Store     storage.Backend
	Sessions  *session.Service
	Journal   *telemetry.Journal
	Snapshots *snapshot.Manager
	Sandbox   *sandbox.Runner
	LLM       llm.Provider
	Metrics   metrics.Recorder
	Log       *zap.Logger
}

// New constructs a server; nil logger and metrics default to no-ops.
func New(store storage.Backend, sessions *session.Service, journal *telemetry.Journal, snapshots *snapshot.Manager, runner *sandbox.Runner, provider llm.Provider, rec metrics.Recorder, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &Server{
		Store:     store,
		Sessions:  sessions,
		Journal:   journal,
		Snapshots: snapshots,
		Sandbox:   runner,
		LLM:       provider,
		Metrics:   rec,
		Log:       log,
	}
}

// Routes returns the full request multiplexer.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/problems/fe", s.handleProblemsFE)
	mux.HandleFunc("GET /api/problems/dv", s.handleProblemsDV)

	mux.HandleFunc("POST /api/session/start", s.handleSessionStart)
	mux.HandleFunc("GET /api/session/{session_id}", s.handleSessionGet)
	mux.HandleFunc("POST /api/session/{session_id}/finish", s.handleSessionFinish)

	mux.HandleFunc("POST /api/events", s.handleEvent)
	mux.HandleFunc("POST /api/events/bulk", s.handleEventsBulk)

	mux.HandleFunc("POST /api/submissions/fe", s.handleSubmitFE)
	mux.HandleFunc("POST /api/submissions/snapshots/fe", s.handleSnapshotFE)
	mux.HandleFunc("POST /api/submissions/dv", s.handleSubmitDV)

	mux.HandleFunc("POST /api/run/dv", s.handleRunDV)
	mux.HandleFunc("POST /api/run/dv/cells", s.handleRunDVCells)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /ws/chat", s.handleChatWS)

	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/chunk", s.handleRecordingChunk)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)

	mux.HandleFunc("POST /api/survey/submit", s.handleSurveySubmit)

	return mux
}
