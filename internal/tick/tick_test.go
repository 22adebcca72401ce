//go:build !windows

package tick

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pondside/heartbeat/internal/prompt"
)

type fixture struct {
	home    string
	marker  string
	logPath string
	secrets string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	home := t.TempDir()
	return fixture{
		home:    home,
		marker:  filepath.Join(home, "heartbeat.pid"),
		logPath: filepath.Join(home, "logs", "heartbeat.log"),
		secrets: filepath.Join(home, ".env"),
	}
}

func (f fixture) options(agent string) Options {
	return Options{
		MarkerPath:   f.marker,
		LogPath:      f.logPath,
		SecretsPath:  f.secrets,
		WorkDir:      f.home,
		AgentCommand: agent,
	}
}

func writeAgent(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "agent.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write agent: %v", err)
	}
	return p
}

func readLog(t *testing.T, f fixture) string {
	t.Helper()
	b, err := os.ReadFile(f.logPath)
	if err != nil {
		t.Fatalf("read heartbeat log: %v", err)
	}
	return string(b)
}

func TestBeatWritesFullBlockAndReleasesMarker(t *testing.T) {
	f := newFixture(t)
	agent := writeAgent(t, f.home, `echo "hello from the agent"`+"\n")
	var stdout bytes.Buffer
	opts := f.options(agent)
	opts.Stdout = &stdout

	out, err := Beat(context.Background(), opts)
	if err != nil {
		t.Fatalf("beat: %v", err)
	}
	if out.Skipped || out.ExitCode != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.FinishedAt.Before(out.StartedAt) {
		t.Fatalf("finished before started: %+v", out)
	}

	log := readLog(t, f)
	startIdx := strings.Index(log, "=== Heartbeat: ")
	outIdx := strings.Index(log, "hello from the agent")
	doneIdx := strings.Index(log, "=== Heartbeat complete: ")
	if startIdx < 0 || outIdx < 0 || doneIdx < 0 {
		t.Fatalf("log block incomplete:\n%s", log)
	}
	if !(startIdx < outIdx && outIdx < doneIdx) {
		t.Fatalf("log block out of order:\n%s", log)
	}
	if !strings.HasSuffix(log, "===\n\n") {
		t.Fatalf("missing trailing separator:\n%q", log)
	}

	// Tee: the same bytes reached the caller's stdout.
	if !strings.Contains(stdout.String(), "hello from the agent") {
		t.Fatalf("output not passed through: %q", stdout.String())
	}

	if _, err := os.Stat(f.marker); !os.IsNotExist(err) {
		t.Fatalf("marker must be gone after the tick")
	}
}

func TestBeatMarkerHeldDuringInvocation(t *testing.T) {
	f := newFixture(t)
	// The agent observes the marker through its environment (merged secrets).
	if err := os.WriteFile(f.secrets, []byte("MARKER="+f.marker+"\n"), 0o600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}
	agent := writeAgent(t, f.home, `test -f "$MARKER" && echo "marker held"`+"\n")

	var stdout bytes.Buffer
	opts := f.options(agent)
	opts.Stdout = &stdout
	if _, err := Beat(context.Background(), opts); err != nil {
		t.Fatalf("beat: %v", err)
	}
	if !strings.Contains(stdout.String(), "marker held") {
		t.Fatalf("marker was not held during invocation (or secrets not in env): %q", stdout.String())
	}
	if _, err := os.Stat(f.marker); !os.IsNotExist(err) {
		t.Fatalf("marker must be gone after the tick")
	}
}

func TestBeatAgentFailureStillCompletes(t *testing.T) {
	f := newFixture(t)
	agent := writeAgent(t, f.home, "echo partial output\nexit 7\n")
	opts := f.options(agent)
	opts.Stdout = &bytes.Buffer{}

	out, err := Beat(context.Background(), opts)
	if err != nil {
		t.Fatalf("agent failure must not fail the tick: %v", err)
	}
	if out.ExitCode != 7 {
		t.Fatalf("exit code = %d, want 7", out.ExitCode)
	}
	log := readLog(t, f)
	for _, want := range []string{"=== Heartbeat: ", "partial output", "=== Heartbeat complete: "} {
		if !strings.Contains(log, want) {
			t.Fatalf("log missing %q:\n%s", want, log)
		}
	}
	if _, err := os.Stat(f.marker); !os.IsNotExist(err) {
		t.Fatalf("marker must be gone after failed agent run")
	}
}

func TestBeatSkipsWhileHolderLives(t *testing.T) {
	f := newFixture(t)
	// #nosec G204
	blocker := exec.Command("/bin/sh", "-c", "sleep 5")
	if err := blocker.Start(); err != nil {
		t.Fatalf("start blocker: %v", err)
	}
	defer func() { _ = blocker.Process.Kill(); _ = blocker.Wait() }()
	if err := os.WriteFile(f.marker, []byte(strconv.Itoa(blocker.Process.Pid)), 0o600); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	canary := filepath.Join(f.home, "invoked")
	agent := writeAgent(t, f.home, "touch "+canary+"\n")
	opts := f.options(agent)
	opts.Stdout = &bytes.Buffer{}

	out, err := Beat(context.Background(), opts)
	if err != nil {
		t.Fatalf("skip is not an error: %v", err)
	}
	if !out.Skipped || out.BlockingPID != blocker.Process.Pid {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if _, err := os.Stat(canary); !os.IsNotExist(err) {
		t.Fatalf("agent must not be invoked on a skipped tick")
	}

	log := readLog(t, f)
	if got := strings.Count(log, "\n"); got != 1 {
		t.Fatalf("skip must append exactly one line, log:\n%q", log)
	}
	if !strings.Contains(log, strconv.Itoa(blocker.Process.Pid)) {
		t.Fatalf("skip line must reference the blocking pid:\n%s", log)
	}

	// Marker is untouched and still names the blocker.
	b, err := os.ReadFile(f.marker)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if string(b) != strconv.Itoa(blocker.Process.Pid) {
		t.Fatalf("marker changed on skip: %q", b)
	}
}

func TestBeatReclaimsStaleMarker(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.marker, []byte("999999"), 0o600); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	agent := writeAgent(t, f.home, "echo reclaimed\n")
	opts := f.options(agent)
	opts.Stdout = &bytes.Buffer{}

	out, err := Beat(context.Background(), opts)
	if err != nil {
		t.Fatalf("beat over stale marker: %v", err)
	}
	if out.Skipped {
		t.Fatalf("stale marker must not cause a skip")
	}
	if !strings.Contains(readLog(t, f), "reclaimed") {
		t.Fatalf("agent did not run after reclaiming stale marker")
	}
	if _, err := os.Stat(f.marker); !os.IsNotExist(err) {
		t.Fatalf("marker must be gone after the tick")
	}
}

func TestBeatSetupFailureReleasesMarker(t *testing.T) {
	f := newFixture(t)
	// Make log directory creation impossible: logs path parent is a file.
	if err := os.WriteFile(filepath.Join(f.home, "logs"), []byte("in the way"), 0o600); err != nil {
		t.Fatalf("write obstruction: %v", err)
	}
	agent := writeAgent(t, f.home, "echo never\n")
	opts := f.options(agent)
	opts.Stdout = &bytes.Buffer{}

	if _, err := Beat(context.Background(), opts); err == nil {
		t.Fatalf("expected setup failure")
	}
	if _, err := os.Stat(f.marker); !os.IsNotExist(err) {
		t.Fatalf("marker must be released even on setup failure")
	}
}

func TestBeatPhasePrompts(t *testing.T) {
	f := newFixture(t)
	agent := writeAgent(t, f.home, `echo "got: $1"`+"\n")

	cases := []struct {
		phase Phase
		want  string
	}{
		{Regular, "You have time alone. Be free."},
		{First, "The night begins."},
		{Last, "The night ends."},
	}
	for _, tc := range cases {
		var stdout bytes.Buffer
		opts := f.options(agent)
		opts.Stdout = &stdout
		opts.Phase = tc.phase
		opts.Prompts = prompt.Builder{} // no prompt files, fixed fallbacks
		if _, err := Beat(context.Background(), opts); err != nil {
			t.Fatalf("beat phase %d: %v", tc.phase, err)
		}
		if !strings.Contains(stdout.String(), tc.want) {
			t.Fatalf("phase %d prompt missing %q: %q", tc.phase, tc.want, stdout.String())
		}
	}
}
