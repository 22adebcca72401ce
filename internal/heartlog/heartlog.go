// Package heartlog is the append-only, line-oriented log shared by every
// tick. It is never rotated or truncated by this tool; growth is an
// operational concern outside this core.
package heartlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Sink appends timestamped text to a single log file. It implements io.Writer
// so the dispatcher can tee raw agent output straight into it.
type Sink struct {
	mu sync.Mutex
	f  *os.File
}

// Open creates the destination directory if needed and opens the log file in
// append mode.
func Open(path string) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	return &Sink{f: f}, nil
}

// Append writes one line followed by a newline.
func (s *Sink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.f.WriteString(line + "\n")
	return err
}

// Write implements io.Writer for raw agent output.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Write(p)
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// StartMarker opens a tick block in the log.
func StartMarker(ts string) string {
	return fmt.Sprintf("=== Heartbeat: %s ===", ts)
}

// CompleteMarker closes a tick block.
func CompleteMarker(ts string) string {
	return fmt.Sprintf("=== Heartbeat complete: %s ===", ts)
}

// SkipLine is the single entry a skipped tick leaves behind.
func SkipLine(ts string, pid int) string {
	return fmt.Sprintf("=== Heartbeat skipped: %s (pid %d still running) ===", ts, pid)
}
