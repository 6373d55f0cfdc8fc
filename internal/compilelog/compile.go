// Package compilelog turns the raw JSONL journals of a session into the
// human-readable transcripts researchers actually read: a full event log, one
// event log per problem, and chat transcripts.
package compilelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"vizlab/internal/storage"
)

// Compiler renders journals from a storage backend back into text logs stored
// alongside them.
type Compiler struct {
	store storage.Backend
	log   *zap.Logger
}

// New constructs a compiler over the given backend.
func New(store storage.Backend, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{store: store, log: log}
}

// Result lists what one compilation produced.
type Result struct {
	FullLog     string            // path of log.txt, empty when no events existed
	ProblemLogs map[string]string // problem id -> per-problem event log path
	ChatLogs    []string          // chat transcript paths
}

// CompileAll compiles every session found under the sessions root.
func (c *Compiler) CompileAll(ctx context.Context) (map[string]Result, error) {
	entries, err := c.store.ListDir(ctx, "sessions")
	if err != nil {
		return nil, err
	}
	out := make(map[string]Result)
	for _, name := range entries {
		if !strings.HasSuffix(name, "/") {
			continue
		}
		sid := strings.TrimSuffix(name, "/")
		res, err := c.CompileSession(ctx, sid)
		if err != nil {
			c.log.Warn("compile failed", zap.String("session_id", sid), zap.Error(err))
			continue
		}
		out[sid] = res
	}
	return out, nil
}

// CompileSession builds the readable logs for one session. Missing journals
// are skipped, not errors; malformed journal lines are dropped.
func (c *Compiler) CompileSession(ctx context.Context, sessionID string) (Result, error) {
	res := Result{ProblemLogs: make(map[string]string)}
	base := storage.SessionDir(sessionID)

	events, err := c.readEventsSorted(ctx, storage.EventsPath(sessionID))
	if err != nil {
		return res, err
	}
	if len(events) > 0 {
		var full []string
		grouped := make(map[string][]string)
		for _, ev := range events {
			line := prettyLine(ev)
			full = append(full, line)
			if pid := extractProblemID(ev); pid != "" {
				grouped[pid] = append(grouped[pid], line)
			}
		}
		path := base + "/log.txt"
		if _, err := storage.WriteText(ctx, c.store, path, strings.Join(full, "\n")+"\n"); err != nil {
			return res, err
		}
		res.FullLog = path
		for pid, lines := range grouped {
			ppath := base + "/log_problem_" + pid + ".txt"
			if _, err := storage.WriteText(ctx, c.store, ppath, strings.Join(lines, "\n")+"\n"); err != nil {
				return res, err
			}
			res.ProblemLogs[pid] = ppath
		}
	}

	// Problem-scoped chat transcripts.
	problems, err := c.store.ListDir(ctx, base+"/problems")
	if err != nil {
		return res, err
	}
	for _, name := range problems {
		if !strings.HasSuffix(name, "/") {
			continue
		}
		pid := strings.TrimSuffix(name, "/")
		out := base + "/log_chat_" + pid + ".txt"
		wrote, err := c.compileChat(ctx, storage.ProblemChatPath(sessionID, pid), out)
		if err != nil {
			return res, err
		}
		if wrote {
			res.ChatLogs = append(res.ChatLogs, out)
		}
	}

	// Session-wide chat fallback journal.
	out := base + "/log_chat.txt"
	wrote, err := c.compileChat(ctx, storage.SessionChatPath(sessionID), out)
	if err != nil {
		return res, err
	}
	if wrote {
		res.ChatLogs = append(res.ChatLogs, out)
	}

	sort.Strings(res.ChatLogs)
	c.log.Info("session log compiled",
		zap.String("session_id", sessionID),
		zap.Int("events", len(events)),
		zap.Int("problems", len(res.ProblemLogs)))
	return res, nil
}

func (c *Compiler) readEventsSorted(ctx context.Context, path string) ([]map[string]any, error) {
	text, err := storage.ReadText(ctx, c.store, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var events []map[string]any
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return clientTS(events[i]) < clientTS(events[j])
	})
	return events, nil
}

func (c *Compiler) compileChat(ctx context.Context, src, dst string) (bool, error) {
	text, err := storage.ReadText(ctx, c.store, src)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var turns []map[string]any
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var t map[string]any
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	if len(turns) == 0 {
		return false, nil
	}
	sort.SliceStable(turns, func(i, j int) bool {
		return clientTS(turns[i]) < clientTS(turns[j])
	})

	var b strings.Builder
	for _, t := range turns {
		problem := ""
		if pid := stringField(t, "problem_id"); pid != "" {
			problem = fmt.Sprintf(" (Problem: %s)", pid)
		}
		id := stringField(t, "id")
		if id == "" {
			id = "unknown"
		}
		prompt := stringField(t, "prompt")
		if prompt == "" {
			prompt = "(no prompt)"
		}
		response := stringField(t, "response")
		if response == "" {
			response = "(no response)"
		}
		fmt.Fprintf(&b, "\n[%s] Chat %s%s\n", fmtTS(clientTS(t)), id, problem)
		fmt.Fprintf(&b, "User: %s\n", prompt)
		fmt.Fprintf(&b, "Assistant: %s\n", response)
	}
	if _, err := storage.WriteText(ctx, c.store, dst, b.String()); err != nil {
		return false, err
	}
	return true, nil
}

// clientTS extracts the millisecond client timestamp, falling back to the
// injected server_ts when the client did not send one, then 0. Events with
// no timestamp at all sort to the front in stable input order.
func clientTS(ev map[string]any) int64 {
	switch v := ev["client_ts"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	}
	if raw, ok := ev["server_ts"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts.UnixMilli()
		}
	}
	return 0
}

// fmtTS renders HH:MM:SS UTC from milliseconds, ??:??:?? when unknown.
func fmtTS(ms int64) string {
	if ms == 0 {
		return "??:??:??"
	}
	return time.UnixMilli(ms).UTC().Format("15:04:05")
}

func prettyLine(ev map[string]any) string {
	etype := strings.ToUpper(stringField(ev, "event_type"))
	payload, _ := ev["payload"].(map[string]any)
	tail := summarizeEvent(strings.ToLower(etype), payload)
	line := fmt.Sprintf("[%s] %s", fmtTS(clientTS(ev)), etype)
	if tail != "" {
		line += " " + tail
	}
	return strings.TrimRight(line, " ")
}

// summarizeEvent renders the short descriptor after the event type for the
// events the platform knows about, falling back to flat key=value pairs.
func summarizeEvent(etype string, p map[string]any) string {
	if p == nil {
		return ""
	}
	pid := stringField(p, "problem_id")
	switch {
	case etype == "task_open" || etype == "task_enter" || etype == "task_leave":
		return "problem=" + pid
	case strings.HasPrefix(etype, "code_change"):
		ln := scalarField(p, "len")
		if pid != "" {
			return fmt.Sprintf("problem=%s len=%s", pid, ln)
		}
		return "len=" + ln
	case etype == "run_click" || etype == "preview_refresh" || etype == "first_preview":
		return "problem=" + pid
	case etype == "submit_click" || etype == "submit_final" || etype == "submit_sent":
		s := "problem=" + pid
		if via := stringField(p, "via"); via != "" {
			s += " via=" + via
		}
		return s
	case strings.HasPrefix(etype, "submission_saved"):
		return fmt.Sprintf("problem=%s bytes=%s", pid, scalarField(p, "bytes"))
	case strings.HasPrefix(etype, "chat_prompt") || strings.HasPrefix(etype, "chat_response"):
		chatID := stringField(p, "chat_id")
		if pid != "" {
			return fmt.Sprintf("problem=%s chat=%s", pid, chatID)
		}
		return "chat=" + chatID
	}

	keys := make([]string, 0, len(p))
	for k, v := range p {
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(pairs, " ")
}

func extractProblemID(ev map[string]any) string {
	p, ok := ev["payload"].(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"problem_id", "pid", "problem"} {
		if v, ok := p[key]; ok && v != nil {
			if s := fmt.Sprintf("%v", v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func scalarField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return "<nil>"
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
