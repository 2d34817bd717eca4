package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput swaps the global logger for one writing JSON into a buffer.
func captureLogOutput(t *testing.T, level Level, fn func()) string {
	t.Helper()
	oldLogger := defaultLogger
	defer func() { defaultLogger = oldLogger }()

	var buf bytes.Buffer
	defaultLogger = New(&buf, level, FormatJSON)
	fn()
	return buf.String()
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("failed to decode log line %q: %v", line, err)
		}
		entries = append(entries, m)
	}
	return entries
}

func TestInitLoggerTo(t *testing.T) {
	oldLogger := defaultLogger
	defer func() { defaultLogger = oldLogger }()

	tests := []struct {
		name     string
		format   Format
		contains string
	}{
		{"json", FormatJSON, `"msg":"hello"`},
		{"text", FormatText, "msg=hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitLoggerTo(&buf, LevelInfo, tt.format)
			Info("hello")
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("output %q does not contain %q", buf.String(), tt.contains)
			}
			if GetLogger() == nil {
				t.Error("GetLogger() returned nil")
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	out := captureLogOutput(t, LevelWarn, func() {
		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")
	})

	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below warn leaked: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected warn and error messages: %s", out)
	}
}

func TestTimestampFormat(t *testing.T) {
	out := captureLogOutput(t, LevelInfo, func() {
		Info("stamp")
	})
	entries := decodeLines(t, out)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	ts, ok := entries[0]["time"].(string)
	if !ok {
		t.Fatalf("time missing: %v", entries[0])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		" error ": LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JSON") != FormatJSON {
		t.Error("JSON should parse to FormatJSON")
	}
	if ParseFormat("text") != FormatText {
		t.Error("text should parse to FormatText")
	}
	if ParseFormat("") != FormatText {
		t.Error("empty should parse to FormatText")
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	if GetRunID(ctx) != "" {
		t.Error("expected empty run id")
	}
	ctx = WithRunID(ctx, "run-1")
	if got := GetRunID(ctx); got != "run-1" {
		t.Errorf("GetRunID() = %q", got)
	}

	out := captureLogOutput(t, LevelInfo, func() {
		LoggerFromContext(ctx).Info("with run")
	})
	entries := decodeLines(t, out)
	if len(entries) != 1 || entries[0]["run_id"] != "run-1" {
		t.Errorf("run_id not attached: %s", out)
	}
}

func TestConversionHelpers(t *testing.T) {
	ctx := WithRunID(context.Background(), "r")
	out := captureLogOutput(t, LevelInfo, func() {
		ConversionStart(ctx, "hamlet", []string{"hamlet.xml"})
		ConversionDone(ctx, "hamlet", 120, 7, 1500*time.Millisecond, "documents", 1)
		ConversionSkipped(ctx, "broken", errors.New("bad entity"))
	})

	entries := decodeLines(t, out)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %s", len(entries), out)
	}
	if entries[0]["msg"] != "conversion_start" || entries[0]["resource"] != "hamlet" {
		t.Errorf("start entry = %v", entries[0])
	}
	done := entries[1]
	if done["msg"] != "conversion_done" {
		t.Errorf("done entry = %v", done)
	}
	if done["text_length"] != float64(120) || done["annotations"] != float64(7) {
		t.Errorf("done sizes = %v", done)
	}
	if done["duration_ms"] != float64(1500) || done["documents"] != float64(1) {
		t.Errorf("done extras = %v", done)
	}
	skipped := entries[2]
	if skipped["level"] != "WARN" || skipped["error"] != "bad entity" {
		t.Errorf("skipped entry = %v", skipped)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelError, slog.LevelError + 4, 12} {
		if l.Enabled(context.Background(), level) {
			t.Errorf("discard logger should not be enabled at level %d", level)
		}
	}
}
