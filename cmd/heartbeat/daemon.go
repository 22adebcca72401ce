package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pondside/heartbeat/internal/config"
	"github.com/pondside/heartbeat/internal/guard"
	"github.com/pondside/heartbeat/internal/history"
	"github.com/pondside/heartbeat/internal/metrics"
	"github.com/pondside/heartbeat/internal/sched"
	"github.com/pondside/heartbeat/internal/server"
	"github.com/pondside/heartbeat/internal/tick"
)

func createDaemonCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the scheduler in the foreground and fire ticks itself",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return err
			}
			if err := cfg.Log.Setup(); err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}
}

// daemon is the long-lived scheduler state. Its only mutable piece is the
// session id threading consecutive beats of one session together.
type daemon struct {
	cfg   config.Config
	store history.Store

	mu        sync.Mutex
	sessionID string
}

func runDaemon(ctx context.Context, cfg config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var srv *http.Server
	if cfg.Server.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		srv = server.NewServer(cfg.Server.Listen, guard.New(cfg.Paths.Marker), store)
		slog.Info("status server listening", "addr", cfg.Server.Listen)
	}

	d := &daemon{cfg: cfg, store: store}
	s := sched.New()
	if err := s.Add(cfg.Schedule, d.beat); err != nil {
		return err
	}
	if cfg.LastSchedule != "" {
		if err := s.Add(cfg.LastSchedule, d.lastBeat); err != nil {
			return err
		}
	}

	slog.Info("heartbeat daemon starting",
		"schedule", cfg.Schedule,
		"last_schedule", cfg.LastSchedule,
		"agent", cfg.Agent.Command)
	s.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case v := <-sig:
		slog.Info("received signal, shutting down", "signal", v.String())
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	<-s.Stop().Done()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	slog.Info("heartbeat daemon stopped")
	return nil
}

// beat fires a regular tick. With sessions enabled, the first beat after
// startup (or after a last breath) opens a fresh session and uses the
// first-breath prompt; later beats resume it.
func (d *daemon) beat() {
	phase := tick.Regular
	args := append([]string{}, d.cfg.Agent.Args...)

	if d.cfg.Agent.Sessions {
		d.mu.Lock()
		if d.sessionID == "" {
			d.sessionID = uuid.NewString()
			phase = tick.First
			args = append(args, "--session-id", d.sessionID)
			slog.Info("opening session", "session", d.sessionID)
		} else {
			args = append(args, "--resume", d.sessionID)
		}
		d.mu.Unlock()
	}
	d.run(phase, args)
}

// lastBeat closes the current session with the last-breath prompt.
func (d *daemon) lastBeat() {
	phase := tick.Last
	args := append([]string{}, d.cfg.Agent.Args...)

	if d.cfg.Agent.Sessions {
		d.mu.Lock()
		if d.sessionID == "" {
			// Daemon restarted mid-window; open a session just to close it.
			d.sessionID = uuid.NewString()
			slog.Warn("no session for last breath, created one", "session", d.sessionID)
			args = append(args, "--session-id", d.sessionID)
		} else {
			args = append(args, "--resume", d.sessionID)
		}
		d.sessionID = ""
		d.mu.Unlock()
	}
	d.run(phase, args)
}

func (d *daemon) run(phase tick.Phase, args []string) {
	if _, err := tick.Beat(context.Background(), tickOptions(d.cfg, phase, args, d.store)); err != nil {
		slog.Error("tick failed", "error", err)
	}
}
