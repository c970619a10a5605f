package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_StderrOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(&buf, slog.LevelInfo, "")
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("recording started", "session", "abc")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(out, "recording started") || !strings.Contains(out, "session=abc") {
		t.Errorf("unexpected output: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("color codes written to a non-terminal")
	}
}

func TestNew_FanoutToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "speech2text.log")

	logger, closeFn, err := New(&buf, slog.LevelWarn, path)
	if err != nil {
		t.Fatal(err)
	}
	logger.With("component", "session").Info("model loaded")
	logger.Warn("still processing")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(buf.String(), "model loaded") {
		t.Error("info record reached stderr at warn level")
	}
	if !strings.Contains(buf.String(), "still processing") {
		t.Error("warn record missing from stderr")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("log file has %d lines, want 2: %q", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "model loaded" || rec["component"] != "session" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_BadFile(t *testing.T) {
	_, _, err := New(&bytes.Buffer{}, slog.LevelInfo, filepath.Join(t.TempDir(), "missing", "x.log"))
	if err == nil {
		t.Fatal("expected error for unwritable log file")
	}
}
