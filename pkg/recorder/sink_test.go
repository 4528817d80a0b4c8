package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"mercator-hq/loupe/pkg/config"
	"mercator-hq/loupe/pkg/telemetry/logging"
)

func newJSONLogger(t *testing.T, buf *bytes.Buffer) *logging.Logger {
	t.Helper()
	logger, err := logging.New(logging.Config{Level: "debug", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}
	return logger
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogSink(t *testing.T) {
	incoming, outgoing, failed := sampleRecords()

	var buf bytes.Buffer
	sink := NewLogSink(newJSONLogger(t, &buf))
	sink.Emit(context.Background(), slog.LevelInfo, incoming)
	sink.Emit(context.Background(), slog.LevelWarn, outgoing)
	sink.Emit(context.Background(), slog.LevelError, failed)

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("got %d log lines, want 3", len(lines))
	}

	tests := []struct {
		msg   string
		level string
	}{
		{"incoming request", "INFO"},
		{"request completed", "WARN"},
		{"request failed", "ERROR"},
	}
	for i, tt := range tests {
		if lines[i]["msg"] != tt.msg || lines[i]["level"] != tt.level {
			t.Errorf("line %d = %v/%v, want %s/%s", i, lines[i]["msg"], lines[i]["level"], tt.msg, tt.level)
		}
		if lines[i]["request_id"] != "abc123" {
			t.Errorf("line %d request_id = %v", i, lines[i]["request_id"])
		}
		if lines[i]["component"] != "recorder" {
			t.Errorf("line %d component = %v", i, lines[i]["component"])
		}
	}

	req := lines[0]["request"].(map[string]any)
	if req["method"] != "POST" || req["body"] != "{\n  \"name\": \"ada\"\n}" {
		t.Errorf("request group = %v", req)
	}

	completed := lines[1]
	resp := completed["response"].(map[string]any)
	if resp["status"] != float64(201) || resp["body"] != "{\n  \"ok\": true\n}" {
		t.Errorf("response group = %v", resp)
	}
	if completed["duration_ms"] != 1.5 {
		t.Errorf("duration_ms = %v", completed["duration_ms"])
	}
	if route := completed["request"].(map[string]any)["route"]; route != "/api/users/{id}" {
		t.Errorf("route = %v", route)
	}

	if lines[2]["error_kind"] != "client_abort" {
		t.Errorf("error_kind = %v", lines[2]["error_kind"])
	}
}

func TestLogSink_ContextIDsWin(t *testing.T) {
	incoming, _, _ := sampleRecords()

	var buf bytes.Buffer
	sink := NewLogSink(newJSONLogger(t, &buf))

	ctx := logging.WithRequestID(context.Background(), "from-ctx")
	sink.Emit(ctx, slog.LevelInfo, incoming)

	lines := decodeLines(t, &buf)
	if lines[0]["request_id"] != "from-ctx" {
		t.Errorf("request_id = %v", lines[0]["request_id"])
	}
}

func TestLogSink_LevelFiltering(t *testing.T) {
	incoming, _, _ := sampleRecords()

	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	NewLogSink(logger).Emit(context.Background(), slog.LevelInfo, incoming)

	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %s", buf.String())
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	incoming, outgoing, _ := sampleRecords()
	other := &Record{Kind: KindRequest, CorrelationID: "zzz"}

	sink.Emit(context.Background(), slog.LevelInfo, incoming)
	sink.Emit(context.Background(), slog.LevelInfo, other)
	sink.Emit(context.Background(), slog.LevelWarn, outgoing)

	if sink.Len() != 3 {
		t.Fatalf("Len() = %d", sink.Len())
	}
	if got := sink.ByCorrelationID("abc123"); len(got) != 2 || got[1] != outgoing {
		t.Errorf("ByCorrelationID() = %v", got)
	}
	if got := sink.ByKind(KindRequest); len(got) != 2 {
		t.Errorf("ByKind() returned %d records", len(got))
	}
	if sink.Entries()[2].Level != slog.LevelWarn {
		t.Errorf("level = %v", sink.Entries()[2].Level)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := sink.WaitFor(ctx, 4); err == nil {
		t.Error("WaitFor() should time out")
	}

	sink.Reset()
	if sink.Len() != 0 {
		t.Errorf("Len() after Reset = %d", sink.Len())
	}
}

func TestMemorySink_WaitFor(t *testing.T) {
	sink := NewMemorySink()
	go func() {
		for i := 0; i < 3; i++ {
			sink.Emit(context.Background(), slog.LevelInfo, &Record{Kind: KindRequest})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.WaitFor(ctx, 3); err != nil {
		t.Fatal(err)
	}
}

func TestMultiSink(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	incoming, _, _ := sampleRecords()

	MultiSink{a, b}.Emit(context.Background(), slog.LevelInfo, incoming)

	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("lens = %d, %d", a.Len(), b.Len())
	}
}

func TestNewSink(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf)

	tests := []struct {
		name    string
		sink    string
		logger  *logging.Logger
		wantErr bool
	}{
		{name: "default", sink: ""},
		{name: "console", sink: config.SinkConsole},
		{name: "log", sink: config.SinkLog, logger: logger},
		{name: "log without logger", sink: config.SinkLog, wantErr: true},
		{name: "unknown", sink: "kafka", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSink(tt.sink, false, &buf, tt.logger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSink() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s == nil {
				t.Error("NewSink() returned nil sink")
			}
		})
	}
}
