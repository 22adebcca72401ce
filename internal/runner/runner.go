// Package runner launches the external agent executable once per tick, in
// non-interactive print-and-exit mode, with the prompt as its final argument.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Spec describes one agent invocation.
type Spec struct {
	// Command is the executable, optionally with leading arguments
	// (e.g. "/usr/local/bin/claude"). Split on whitespace; no shell is
	// involved, so the prompt can be passed as a single argv entry.
	Command string
	// Args are placed between the command and the prompt
	// (e.g. ["--print"] or session flags).
	Args []string
	// WorkDir is the agent's home directory; the process starts there so it
	// sees the working directory it expects.
	WorkDir string
	// Env is the full environment for the process, typically the OS
	// environment merged with the tick's secrets.
	Env []string
}

// Result reports how the invocation ended. The agent's exit status never
// fails the surrounding tick; it is carried here for logging and history only.
type Result struct {
	ExitCode int
	// Err is set only when the process could not be started or waited on, not
	// for a non-zero exit.
	Err error
}

type Runner struct {
	spec Spec
}

func New(spec Spec) (*Runner, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, errors.New("runner: empty agent command")
	}
	return &Runner{spec: spec}, nil
}

// Run invokes the agent with the given prompt, streaming combined stdout and
// stderr to out as they are produced. Callers tee to multiple sinks by passing
// an io.MultiWriter. There is no timeout: a hung agent blocks the tick, and
// the next tick's guard check is the backpressure.
func (r *Runner) Run(p string, out io.Writer) Result {
	cmd := r.buildCommand(p)
	cmd.Dir = r.spec.WorkDir
	cmd.Env = r.spec.Env
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0}
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return Result{ExitCode: ee.ExitCode()}
	}
	return Result{ExitCode: -1, Err: fmt.Errorf("run agent: %w", err)}
}

func (r *Runner) buildCommand(p string) *exec.Cmd {
	parts := strings.Fields(strings.TrimSpace(r.spec.Command))
	name := parts[0]
	args := append([]string{}, parts[1:]...)
	args = append(args, r.spec.Args...)
	args = append(args, p)
	// #nosec G204
	return exec.Command(name, args...)
}
