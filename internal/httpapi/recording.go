package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"vizlab/internal/storage"
)

// Screen recording arrives as multipart uploads: a start marker, numbered
// webm chunks, and a stop marker. Markers are append-only timestamp lists so
// repeated start/stop cycles within one session stay visible.

const maxChunkBytes = 64 << 20

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	s.handleRecordingMarker(w, r, "started.txt")
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	s.handleRecordingMarker(w, r, "stopped.txt")
}

func (s *Server) handleRecordingMarker(w http.ResponseWriter, r *http.Request, name string) {
	sid := r.FormValue("session_id")
	if sid == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	path := storage.RecordingsDir(sid) + "/" + name
	line := strconv.FormatInt(time.Now().UnixMilli(), 10) + "\n"
	if err := s.appendMarker(r.Context(), path, line); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) appendMarker(ctx context.Context, path, line string) error {
	existing, err := storage.ReadText(ctx, s.Store, path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	_, err = storage.WriteText(ctx, s.Store, path, existing+line)
	return err
}

func (s *Server) handleRecordingChunk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxChunkBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	sid := r.FormValue("session_id")
	if sid == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	partNo, err := strconv.Atoi(r.FormValue("part_no"))
	if err != nil || partNo < 0 {
		writeError(w, http.StatusBadRequest, "part_no must be a non-negative integer")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxChunkBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read chunk: "+err.Error())
		return
	}

	path := fmt.Sprintf("%s/part-%04d.webm", storage.RecordingsDir(sid), partNo)
	start := time.Now()
	_, err = s.Store.Write(r.Context(), path, data)
	s.Metrics.Observe(r.Context(), "recording_chunk", err == nil, time.Since(start))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "path": path})
}
