// Package telemetry maintains the append-only event and chat journals of a
// session. Records are never mutated; ordering is by client-reported
// timestamp with the injected server timestamp as audit fallback.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"vizlab/internal/storage"
)

// Journal appends telemetry records through a storage backend. Appends are
// serialized per session (a single-writer lane), which removes the
// lost-update race of the read-modify-write journal files for writers within
// this process.
type Journal struct {
	store storage.Backend
	log   *zap.Logger

	mu    sync.Mutex
	lanes map[string]*sync.Mutex
}

// NewJournal constructs a telemetry journal over the given backend.
func NewJournal(store storage.Backend, log *zap.Logger) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{store: store, log: log, lanes: make(map[string]*sync.Mutex)}
}

func (j *Journal) lane(sessionID string) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()
	l, ok := j.lanes[sessionID]
	if !ok {
		l = &sync.Mutex{}
		j.lanes[sessionID] = l
	}
	return l
}

// AppendEvent appends one record to the session's flat event journal,
// injecting server_ts and event_id when absent. Duplicate content is fine;
// the journal is append-only, not deduplicated.
func (j *Journal) AppendEvent(ctx context.Context, sessionID string, record map[string]any) error {
	lane := j.lane(sessionID)
	lane.Lock()
	defer lane.Unlock()
	if _, err := storage.AppendJSONL(ctx, j.store, storage.EventsPath(sessionID), record); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// AppendEvents appends a batch of records in one read-modify-write cycle.
func (j *Journal) AppendEvents(ctx context.Context, sessionID string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	lane := j.lane(sessionID)
	lane.Lock()
	defer lane.Unlock()
	if _, err := storage.AppendJSONLMany(ctx, j.store, storage.EventsPath(sessionID), records); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	return nil
}

// AppendChat appends one chat turn. Turns carrying a problem_id land in the
// problem-scoped journal; the rest fall back to the session-wide one.
func (j *Journal) AppendChat(ctx context.Context, sessionID string, record map[string]any) error {
	path := storage.SessionChatPath(sessionID)
	if pid, ok := record["problem_id"]; ok {
		if s := fmt.Sprintf("%v", pid); s != "" && s != "<nil>" {
			path = storage.ProblemChatPath(sessionID, s)
		}
	}
	lane := j.lane(sessionID)
	lane.Lock()
	defer lane.Unlock()
	if _, err := storage.AppendJSONL(ctx, j.store, path, record); err != nil {
		return fmt.Errorf("append chat: %w", err)
	}
	j.log.Debug("chat turn appended", zap.String("session_id", sessionID), zap.String("path", path))
	return nil
}
