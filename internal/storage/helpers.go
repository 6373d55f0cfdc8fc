package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UTCNowISO returns the current UTC time as RFC3339 with a Z suffix, the
// timestamp format used throughout the persisted layout.
func UTCNowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
}

// WriteText stores a UTF-8 string at path.
func WriteText(ctx context.Context, b Backend, path, text string) (string, error) {
	return b.Write(ctx, path, []byte(text))
}

// WriteJSON stores v as indented JSON. Non-ASCII characters are preserved
// as-is (encoding/json emits UTF-8, not \u escapes, for multibyte runes).
func WriteJSON(ctx context.Context, b Backend, path string, v any) (string, error) {
	data, err := marshalJSON(v, "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	return b.Write(ctx, path, data)
}

// ReadText reads the content at path as a string.
func ReadText(ctx context.Context, b Backend, path string) (string, error) {
	data, err := b.Read(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadJSON decodes the JSON content at path into v.
func ReadJSON(ctx context.Context, b Backend, path string, v any) error {
	data, err := b.Read(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// AppendJSONL appends one line-delimited JSON record to the journal at path,
// injecting server_ts and a unique event_id when the record lacks them. The
// whole file is read and written back, so concurrent appenders to the same
// path race (last writer wins); callers serialize per path.
func AppendJSONL(ctx context.Context, b Backend, path string, record map[string]any) (string, error) {
	return AppendJSONLMany(ctx, b, path, []map[string]any{record})
}

// AppendJSONLMany appends several records in one read-modify-write cycle.
func AppendJSONLMany(ctx context.Context, b Backend, path string, records []map[string]any) (string, error) {
	existing, err := b.Read(ctx, path)
	if errors.Is(err, ErrNotFound) {
		existing = nil
	} else if err != nil {
		return "", err
	}
	buf := bytes.NewBuffer(existing)
	for _, record := range records {
		line, err := marshalJSON(Stamp(record), "")
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", path, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return b.Write(ctx, path, buf.Bytes())
}

// Stamp returns a copy of record with server_ts and event_id filled in when
// absent. The input map is not mutated.
func Stamp(record map[string]any) map[string]any {
	out := make(map[string]any, len(record)+2)
	for k, v := range record {
		out[k] = v
	}
	if _, ok := out["server_ts"]; !ok {
		out["server_ts"] = UTCNowISO()
	}
	if _, ok := out["event_id"]; !ok {
		out["event_id"] = uuid.NewString()
	}
	return out
}

// marshalJSON encodes without HTML escaping so journal content stays readable.
// A non-empty indent produces pretty output; json.Encoder appends a trailing
// newline which is trimmed here.
func marshalJSON(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
