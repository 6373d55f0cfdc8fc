package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vizlab/internal/llm"
)

type chatIn struct {
	SessionID        string  `json:"session_id"`
	Message          string  `json:"message"`
	ProblemID        *flexID `json:"problem_id"`
	ProblemTitle     *string `json:"problem_title"`
	ProblemStatement *string `json:"problem_statement"`
	ThreadID         *string `json:"thread_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var in chatIn
	if !decodeJSON(w, r, &in) {
		return
	}
	ctx := r.Context()
	msgs := llm.BuildPrompt(in.Message, in.ProblemTitle, in.ProblemStatement)

	start := time.Now()
	reply, err := s.LLM.Complete(ctx, msgs)
	s.Metrics.Observe(ctx, "chat_complete", err == nil, time.Since(start))
	if err != nil {
		writeError(w, http.StatusBadGateway, "assistant unavailable: "+err.Error())
		return
	}
	s.persistChatTurn(ctx, in, reply)
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The study frontend runs on a different origin than the backend.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleChatWS streams assistant tokens over a WebSocket. Each inbound JSON
// message is one prompt; the response is a sequence of {"type":"token"}
// frames closed by {"type":"done"}.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	ctx := r.Context()

	for {
		var in chatIn
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.Log.Debug("chat websocket closed", zap.Error(err))
			}
			return
		}
		msgs := llm.BuildPrompt(in.Message, in.ProblemTitle, in.ProblemStatement)

		var full []byte
		start := time.Now()
		streamErr := s.LLM.Stream(ctx, msgs, func(token string) error {
			full = append(full, token...)
			return conn.WriteJSON(map[string]any{"type": "token", "text": token})
		})
		s.Metrics.Observe(ctx, "chat_stream", streamErr == nil, time.Since(start))
		if streamErr != nil {
			_ = conn.WriteJSON(map[string]any{"type": "error", "error": streamErr.Error()})
			return
		}
		if err := conn.WriteJSON(map[string]any{"type": "done"}); err != nil {
			return
		}
		s.persistChatTurn(ctx, in, string(full))
	}
}

// persistChatTurn journals one prompt/response pair. Turns arriving without a
// session id (anonymous previews) are not persisted.
func (s *Server) persistChatTurn(ctx context.Context, in chatIn, reply string) {
	if in.SessionID == "" {
		return
	}
	record := map[string]any{
		"id":        uuid.NewString(),
		"prompt":    in.Message,
		"response":  reply,
		"client_ts": time.Now().UnixMilli(),
	}
	if in.ProblemID != nil && *in.ProblemID != "" {
		record["problem_id"] = string(*in.ProblemID)
	}
	if in.ThreadID != nil {
		record["thread_id"] = *in.ThreadID
	}
	if err := s.Journal.AppendChat(ctx, in.SessionID, record); err != nil {
		s.Log.Warn("chat journal append failed",
			zap.String("session_id", in.SessionID),
			zap.Error(err))
	}
}
