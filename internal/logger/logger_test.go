package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"info":  slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q = %v, want %v", in, got, want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestSetupWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "heartbeat-tool.log")
	cfg := Config{Path: path, Level: "debug"}
	if err := cfg.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	slog.Info("tick started", "pid", 123)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "tick started") {
		t.Fatalf("file log missing entry: %q", b)
	}
}

func TestSetupRejectsBadLevel(t *testing.T) {
	if err := (Config{Level: "nope"}).Setup(); err == nil {
		t.Fatalf("expected error")
	}
}
