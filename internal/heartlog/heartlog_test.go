package heartlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenCreatesDirectory(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "deep", "heartbeat.log")
	s, err := Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}
}

func TestAppendIsAppendOnly(t *testing.T) {
	p := filepath.Join(t.TempDir(), "heartbeat.log")

	s, err := Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Append("first"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = s.Close()

	// Reopening must not truncate.
	s, err = Open(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := s.Append("second"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.Write([]byte("raw output\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = s.Close()

	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got, want := string(b), "first\nsecond\nraw output\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestMarkers(t *testing.T) {
	if got := StartMarker("2025-03-04 23:30:00"); got != "=== Heartbeat: 2025-03-04 23:30:00 ===" {
		t.Fatalf("start marker: %q", got)
	}
	if got := CompleteMarker("2025-03-04 23:31:00"); got != "=== Heartbeat complete: 2025-03-04 23:31:00 ===" {
		t.Fatalf("complete marker: %q", got)
	}
	skip := SkipLine("2025-03-04 23:30:00", 4242)
	if !strings.Contains(skip, "4242") || !strings.Contains(skip, "skipped") {
		t.Fatalf("skip line must name the blocking pid: %q", skip)
	}
}
