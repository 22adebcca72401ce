// Package tick runs one full heartbeat: claim the marker, log the start,
// build the prompt, dispatch the agent, log completion, release the marker.
// The marker release is deferred right after acquisition so it happens on
// every exit path, including setup failures and agent crashes.
package tick

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pondside/heartbeat/internal/clock"
	"github.com/pondside/heartbeat/internal/envfile"
	"github.com/pondside/heartbeat/internal/guard"
	"github.com/pondside/heartbeat/internal/heartlog"
	"github.com/pondside/heartbeat/internal/history"
	"github.com/pondside/heartbeat/internal/metrics"
	"github.com/pondside/heartbeat/internal/prompt"
	"github.com/pondside/heartbeat/internal/runner"
)

// Phase selects the prompt variant. One-shot timer ticks are always Regular;
// daemon mode promotes the opening and closing beats of a session.
type Phase int

const (
	Regular Phase = iota
	First
	Last
)

func (p Phase) String() string {
	switch p {
	case First:
		return "first"
	case Last:
		return "last"
	default:
		return "regular"
	}
}

// Options carries everything one tick needs. The caller maps config onto it.
type Options struct {
	MarkerPath   string
	LogPath      string
	SecretsPath  string
	WorkDir      string
	AgentCommand string
	AgentArgs    []string
	Prompts      prompt.Builder
	Phase        Phase

	// Stdout is the pass-through half of the tee; defaults to os.Stdout.
	Stdout io.Writer
	// Store, when set, receives one record per tick.
	Store history.Store
}

// Outcome summarizes a finished tick.
type Outcome struct {
	Skipped     bool
	BlockingPID int
	ExitCode    int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Beat executes one tick. A concurrent holder is not an error: the tick is
// skipped, leaves a single log line, and Beat returns Skipped=true with a nil
// error. The agent's exit status likewise never turns into an error; only
// internal setup failures do.
func Beat(ctx context.Context, opts Options) (Outcome, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	start := clock.Now()

	secrets, err := envfile.Load(opts.SecretsPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("load secrets: %w", err)
	}

	g := guard.New(opts.MarkerPath)
	lease, err := g.TryAcquire()
	var busy *guard.AlreadyRunningError
	if errors.As(err, &busy) {
		return skip(ctx, opts, start, busy.PID)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("acquire marker: %w", err)
	}
	defer lease.Release()

	sink, err := heartlog.Open(opts.LogPath)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = sink.Close() }()

	r, err := runner.New(runner.Spec{
		Command: opts.AgentCommand,
		Args:    opts.AgentArgs,
		WorkDir: opts.WorkDir,
		Env:     envfile.Merge(secrets),
	})
	if err != nil {
		return Outcome{}, err
	}

	if err := sink.Append(heartlog.StartMarker(start.Sortable())); err != nil {
		return Outcome{}, fmt.Errorf("log start marker: %w", err)
	}
	slog.Info("heartbeat start", "phase", opts.Phase, "pid", os.Getpid())

	res := r.Run(buildPrompt(opts, start), io.MultiWriter(sink, opts.Stdout))
	end := clock.Now()

	if res.Err != nil {
		slog.Error("agent invocation failed", "error", res.Err)
	} else if res.ExitCode != 0 {
		slog.Warn("agent exited non-zero", "exit_code", res.ExitCode)
	}

	// Completion is logged in all cases; the agent's result is evidence for
	// the log and history, not a tick failure.
	if err := sink.Append(heartlog.CompleteMarker(end.Sortable())); err != nil {
		return Outcome{}, fmt.Errorf("log complete marker: %w", err)
	}
	if err := sink.Append(""); err != nil {
		return Outcome{}, fmt.Errorf("log separator: %w", err)
	}

	out := Outcome{
		ExitCode:   res.ExitCode,
		StartedAt:  start.Time(),
		FinishedAt: end.Time(),
	}
	metrics.IncCompleted(end.Time().Sub(start.Time()).Seconds(), res.ExitCode)
	record(ctx, opts.Store, out)
	slog.Info("heartbeat complete", "exit_code", res.ExitCode, "duration", end.Time().Sub(start.Time()))
	return out, nil
}

func skip(ctx context.Context, opts Options, start clock.Stamp, pid int) (Outcome, error) {
	sink, err := heartlog.Open(opts.LogPath)
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = sink.Close() }()
	if err := sink.Append(heartlog.SkipLine(start.Sortable(), pid)); err != nil {
		return Outcome{}, fmt.Errorf("log skip: %w", err)
	}
	out := Outcome{
		Skipped:     true,
		BlockingPID: pid,
		StartedAt:   start.Time(),
		FinishedAt:  start.Time(),
	}
	metrics.IncSkipped()
	record(ctx, opts.Store, out)
	slog.Info("heartbeat skipped, previous still running", "blocking_pid", pid)
	return out, nil
}

func buildPrompt(opts Options, start clock.Stamp) string {
	switch opts.Phase {
	case First:
		return opts.Prompts.First(start.Human())
	case Last:
		return opts.Prompts.Last(start.Human())
	default:
		return prompt.Build(start.Human())
	}
}

func record(ctx context.Context, store history.Store, out Outcome) {
	if store == nil {
		return
	}
	rec := history.Record{
		StartedAt:   out.StartedAt,
		FinishedAt:  out.FinishedAt,
		Skipped:     out.Skipped,
		BlockingPID: out.BlockingPID,
		ExitCode:    out.ExitCode,
	}
	if err := store.RecordTick(ctx, rec); err != nil {
		slog.Warn("record tick history", "error", err)
	}
}
