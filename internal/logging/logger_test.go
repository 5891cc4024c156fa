package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"padded", " debug ", slog.LevelDebug},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		format    string
		wantDebug bool
		wantInfo  bool
	}{
		{"info", "text", false, true},
		{"debug", "text", true, true},
		{"trace", "json", true, true},
		{"warn", "json", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.level, tt.format, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.wantDebug {
				t.Errorf("debug visible = %v, want %v", got, tt.wantDebug)
			}

			buf.Reset()
			logger.Info("info message")
			if got := strings.Contains(buf.String(), "info message"); got != tt.wantInfo {
				t.Errorf("info visible = %v, want %v", got, tt.wantInfo)
			}
		})
	}
}

func TestNewJSONLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "week traced")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log line: %v (%q)", err, buf.String())
	}
	if entry["level"] != "TRACE" {
		t.Errorf("level = %v, want TRACE", entry["level"])
	}
}

func TestDiscard(t *testing.T) {
	Discard().Error("dropped")
}

func readEvents(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, EventsFile))
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("parse event %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNewEventLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "info")
	if el != nil {
		t.Fatal("expected nil EventLogger at info level")
	}

	el.Log("run_built", map[string]any{"run": 1})
	if el.Tracing() {
		t.Error("nil EventLogger reports tracing")
	}
	if err := el.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, EventsFile)); err == nil {
		t.Error("events file should not exist at info level")
	}
}

func TestEventLogger_Log(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	el := NewEventLogger(dir, "debug")
	if el == nil {
		t.Fatal("expected EventLogger at debug level")
	}
	defer el.Close()

	if el.Tracing() {
		t.Error("debug level should not trace every week")
	}

	fields := map[string]any{"mode": "standard", "prep": 0.1}
	el.Log("batch_job", fields)
	el.Log("run_built", map[string]any{"run": 2})

	if _, ok := fields["event"]; ok {
		t.Error("Log() mutated the caller's map")
	}

	events := readEvents(t, dir)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0]["event"] != "batch_job" || events[0]["mode"] != "standard" || events[0]["prep"] != 0.1 {
		t.Errorf("first event = %v", events[0])
	}
	if _, ok := events[1]["time"]; !ok {
		t.Error("event missing time field")
	}

	info, err := os.Stat(filepath.Join(dir, EventsFile))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}

func TestEventLogger_TraceAndConcurrency(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "trace")
	if !el.Tracing() {
		t.Fatal("trace level should report tracing")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := 0; w < 25; w++ {
				el.Log("step", map[string]any{"run": i, "week": w})
			}
		}()
	}
	wg.Wait()
	if err := el.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	el.Log("after_close", nil)

	if got := len(readEvents(t, dir)); got != 200 {
		t.Errorf("got %d events, want 200", got)
	}
}
