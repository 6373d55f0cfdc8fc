package compilelog

import (
	"context"
	"strings"
	"testing"

	"vizlab/internal/infra/storage/memory"
	"vizlab/internal/storage"
	"vizlab/internal/telemetry"
)

func seedSession(t *testing.T, store storage.Backend, sid string) {
	t.Helper()
	ctx := context.Background()
	j := telemetry.NewJournal(store, nil)

	events := []map[string]any{
		{"event_type": "task_open", "payload": map[string]any{"problem_id": "1"}, "client_ts": int64(1000)},
		{"event_type": "code_change", "payload": map[string]any{"problem_id": "1", "len": 120}, "client_ts": int64(3000)},
		{"event_type": "submit_final", "payload": map[string]any{"problem_id": "2", "via": "button"}, "client_ts": int64(2000)},
		{"event_type": "heartbeat", "payload": map[string]any{}, "client_ts": int64(4000)},
	}
	if err := j.AppendEvents(ctx, sid, events); err != nil {
		t.Fatalf("seed events: %v", err)
	}
	if err := j.AppendChat(ctx, sid, map[string]any{
		"id": "c1", "prompt": "how do I plot?", "response": "use plt.plot", "problem_id": "1", "client_ts": int64(1500),
	}); err != nil {
		t.Fatalf("seed problem chat: %v", err)
	}
	if err := j.AppendChat(ctx, sid, map[string]any{
		"id": "c2", "prompt": "hello", "response": "hi", "client_ts": int64(500),
	}); err != nil {
		t.Fatalf("seed session chat: %v", err)
	}
}

func TestCompileSession(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedSession(t, store, "s1")

	res, err := New(store, nil).CompileSession(ctx, "s1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.FullLog != "sessions/s1/log.txt" {
		t.Fatalf("full log = %q", res.FullLog)
	}

	full, err := storage.ReadText(ctx, store, res.FullLog)
	if err != nil {
		t.Fatalf("read full log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(full), "\n")
	if len(lines) != 4 {
		t.Fatalf("log lines = %d, want 4:\n%s", len(lines), full)
	}
	// Sorted by client_ts: task_open(1000), submit_final(2000), code_change(3000), heartbeat(4000).
	if !strings.Contains(lines[0], "TASK_OPEN problem=1") {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "SUBMIT_FINAL problem=2 via=button") {
		t.Fatalf("line 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "CODE_CHANGE problem=1 len=120") {
		t.Fatalf("line 2 = %q", lines[2])
	}
	// Timestamps render as HH:MM:SS.
	if !strings.HasPrefix(lines[0], "[00:00:01] ") {
		t.Fatalf("timestamp prefix = %q", lines[0])
	}

	// Per-problem split keeps only that problem's lines.
	p1, err := storage.ReadText(ctx, store, res.ProblemLogs["1"])
	if err != nil {
		t.Fatalf("read problem log: %v", err)
	}
	if strings.Contains(p1, "SUBMIT_FINAL") || !strings.Contains(p1, "CODE_CHANGE") {
		t.Fatalf("problem log 1 = %s", p1)
	}
	if _, ok := res.ProblemLogs["2"]; !ok {
		t.Fatalf("problem 2 log missing: %v", res.ProblemLogs)
	}
}

func TestCompileSessionChatTranscripts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedSession(t, store, "s1")

	res, err := New(store, nil).CompileSession(ctx, "s1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(res.ChatLogs) != 2 {
		t.Fatalf("chat logs = %v", res.ChatLogs)
	}

	scoped, err := storage.ReadText(ctx, store, "sessions/s1/log_chat_1.txt")
	if err != nil {
		t.Fatalf("read scoped chat: %v", err)
	}
	for _, want := range []string{"Chat c1 (Problem: 1)", "User: how do I plot?", "Assistant: use plt.plot"} {
		if !strings.Contains(scoped, want) {
			t.Fatalf("scoped chat missing %q:\n%s", want, scoped)
		}
	}

	general, err := storage.ReadText(ctx, store, "sessions/s1/log_chat.txt")
	if err != nil {
		t.Fatalf("read general chat: %v", err)
	}
	if !strings.Contains(general, "User: hello") {
		t.Fatalf("general chat = %s", general)
	}
}

func TestCompileSessionWithoutJournals(t *testing.T) {
	res, err := New(memory.New(), nil).CompileSession(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("compile empty: %v", err)
	}
	if res.FullLog != "" || len(res.ProblemLogs) != 0 || len(res.ChatLogs) != 0 {
		t.Fatalf("result for empty session = %+v", res)
	}
}

func TestCompileAll(t *testing.T) {
	store := memory.New()
	seedSession(t, store, "s1")
	seedSession(t, store, "s2")

	results, err := New(store, nil).CompileAll(context.Background())
	if err != nil {
		t.Fatalf("compile all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("sessions compiled = %d, want 2", len(results))
	}
	for sid, res := range results {
		if res.FullLog == "" {
			t.Fatalf("session %s has no full log", sid)
		}
	}
}

func TestCompileSessionFallsBackToServerTS(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	j := telemetry.NewJournal(store, nil)

	// The second event carries no client_ts; its server_ts (1970-01-01
	// 00:00:02 UTC) must place it between the other two.
	events := []map[string]any{
		{"event_type": "task_open", "payload": map[string]any{}, "client_ts": int64(1000)},
		{"event_type": "heartbeat", "payload": map[string]any{}, "server_ts": "1970-01-01T00:00:02.000000Z"},
		{"event_type": "submit_final", "payload": map[string]any{}, "client_ts": int64(3000)},
	}
	if err := j.AppendEvents(ctx, "s1", events); err != nil {
		t.Fatalf("seed events: %v", err)
	}

	res, err := New(store, nil).CompileSession(ctx, "s1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	full, err := storage.ReadText(ctx, store, res.FullLog)
	if err != nil {
		t.Fatalf("read full log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(full), "\n")
	if len(lines) != 3 {
		t.Fatalf("log lines = %d, want 3:\n%s", len(lines), full)
	}
	if !strings.Contains(lines[1], "HEARTBEAT") {
		t.Fatalf("line 1 = %q, want HEARTBEAT in the middle", lines[1])
	}
	if !strings.HasPrefix(lines[1], "[00:00:02] ") {
		t.Fatalf("fallback timestamp = %q", lines[1])
	}
}

func TestClientTSFallbacks(t *testing.T) {
	cases := []struct {
		name string
		ev   map[string]any
		want int64
	}{
		{"client wins", map[string]any{"client_ts": float64(5000), "server_ts": "1970-01-01T00:00:09Z"}, 5000},
		{"server fallback", map[string]any{"server_ts": "1970-01-01T00:00:02.500000Z"}, 2500},
		{"unparsable server", map[string]any{"server_ts": "yesterday"}, 0},
		{"nothing", map[string]any{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clientTS(tc.ev); got != tc.want {
				t.Fatalf("clientTS = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFmtTSUnknown(t *testing.T) {
	if got := fmtTS(0); got != "??:??:??" {
		t.Fatalf("fmtTS(0) = %q", got)
	}
}
