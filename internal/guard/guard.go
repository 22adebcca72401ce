// Package guard provides advisory mutual exclusion between heartbeat ticks.
//
// The marker is a plain PID file. Exclusion is cooperative: there is a narrow
// race between probing and creating the marker, accepted because the tick
// period is orders of magnitude longer than the window. A stale marker (its
// PID no longer live) is reclaimed automatically. PID reuse can in theory make
// a stale marker look live; that residual risk is accepted and not mitigated.
package guard

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pondside/heartbeat/internal/detector"
)

// AlreadyRunningError reports that another tick holds the marker.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("another heartbeat is already running (pid %d)", e.PID)
}

// ProbeFunc builds the liveness detector for a marker's PID. The default
// probes real processes; tests substitute fakes to simulate live or dead
// holders without spawning anything.
type ProbeFunc func(pid int) detector.Detector

// Guard acquires and releases the tick marker.
type Guard struct {
	markerPath string
	probe      ProbeFunc
}

func New(markerPath string) *Guard {
	return NewWithProbe(markerPath, func(pid int) detector.Detector {
		return detector.PIDDetector{PID: pid}
	})
}

func NewWithProbe(markerPath string, probe ProbeFunc) *Guard {
	return &Guard{markerPath: markerPath, probe: probe}
}

// Lease is a held marker. Release removes the marker file unconditionally and
// is safe to call more than once; callers defer it immediately after a
// successful TryAcquire so every exit path of the tick clears the marker.
type Lease struct {
	path string
	once sync.Once
}

func (l *Lease) Release() {
	l.once.Do(func() { _ = os.Remove(l.path) })
}

// TryAcquire claims the marker for the current process. If the marker exists
// and its PID is live, it returns *AlreadyRunningError and leaves the marker
// untouched. A stale or unreadable marker is discarded and reclaimed.
func (g *Guard) TryAcquire() (*Lease, error) {
	pid, err := readMarker(g.markerPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// no marker, free to claim
	case err != nil:
		// unreadable or corrupt marker: no live holder can be identified,
		// treat as stale
		slog.Warn("discarding corrupt marker", "path", g.markerPath, "error", err)
		if rmErr := os.Remove(g.markerPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("remove corrupt marker (%v): %w", err, rmErr)
		}
	default:
		alive, probeErr := g.probe(pid).Alive()
		if probeErr != nil {
			return nil, fmt.Errorf("probe marker pid %d: %w", pid, probeErr)
		}
		if alive {
			return nil, &AlreadyRunningError{PID: pid}
		}
		if rmErr := os.Remove(g.markerPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("remove stale marker: %w", rmErr)
		}
	}
	if err := writeMarker(g.markerPath, os.Getpid()); err != nil {
		return nil, fmt.Errorf("write marker: %w", err)
	}
	return &Lease{path: g.markerPath}, nil
}

// HolderPID returns the PID stored in the marker and whether that process is
// live, without modifying anything. Used by status reporting.
func (g *Guard) HolderPID() (pid int, alive bool, err error) {
	pid, err = readMarker(g.markerPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	alive, err = g.probe(pid).Alive()
	if err != nil {
		return 0, false, fmt.Errorf("probe marker pid %d: %w", pid, err)
	}
	return pid, alive, nil
}

func readMarker(path string) (int, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}
	pidLine, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, fmt.Errorf("invalid pid in %s: %w", path, err)
	}
	return pid, nil
}

func writeMarker(path string, pid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o600)
}
