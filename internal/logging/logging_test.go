package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	l, err := New(Options{Level: "info", Console: &buf, NoColor: true, File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l.Debug().Msg("hidden")
	l.Info().Str("channel", "CH_0").Msg("sampling")
	if err := l.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug entry should be filtered at info level")
	}
	if !strings.Contains(buf.String(), "sampling") || !strings.Contains(buf.String(), "CH_0") {
		t.Errorf("console output missing entry: %q", buf.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "sampling") {
		t.Errorf("file output missing entry: %q", data)
	}
}

func TestFilePath(t *testing.T) {
	now := time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC)
	got := FilePath("/var/log", now)
	if got != filepath.Join("/var/log", "joydrive.20240309.log") {
		t.Errorf("unexpected path %s", got)
	}
}
