package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long line", 10, "this is..."},
		{"Каждый день я становлюсь лучше", 9, "Каждый..."},
		{"abc", 2, "..."},
	}
	for _, tc := range tests {
		if got := Truncate(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestJSONLoggerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, "warn", true)

	log.Info("dropped")
	log.Warn("kept", "entry_id", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "kept" || entry["entry_id"] != float64(3) {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestGocronLoggerAddsComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	gl := NewGocronLogger(newLogger(&buf, "debug", false))
	gl.Error("job failed", "job", "publish_1")

	out := buf.String()
	if !strings.Contains(out, "component=gocron") || !strings.Contains(out, "job=publish_1") {
		t.Errorf("unexpected gocron log output: %q", out)
	}
}
