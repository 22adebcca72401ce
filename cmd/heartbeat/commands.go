package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pondside/heartbeat/internal/config"
	"github.com/pondside/heartbeat/internal/guard"
	"github.com/pondside/heartbeat/internal/history"
	"github.com/pondside/heartbeat/internal/history/sqlite"
	"github.com/pondside/heartbeat/internal/prompt"
	"github.com/pondside/heartbeat/internal/tick"
)

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "heartbeat",
		Short: "Periodic single-instance agent invoker",
		Long: "heartbeat wakes an external agent executable on a schedule, one\n" +
			"invocation at a time, and keeps an append-only log of every beat.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to heartbeat.toml (default: ./heartbeat.toml, then ~/.config/heartbeat/)")

	root.AddCommand(
		createBeatCommand(flags),
		createDaemonCommand(flags),
		createStatusCommand(flags),
		createHistoryCommand(flags),
	)
	return root
}

func createBeatCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "beat",
		Short: "Run one heartbeat tick (intended for an external timer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return err
			}
			if err := cfg.Log.Setup(); err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			out, err := tick.Beat(cmd.Context(), tickOptions(cfg, tick.Regular, cfg.Agent.Args, store))
			if err != nil {
				return err
			}
			// Skips and agent failures both end the tick successfully; the
			// log carries the evidence.
			if out.Skipped {
				slog.Info("nothing to do", "blocking_pid", out.BlockingPID)
			}
			return nil
		},
	}
}

func createStatusCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a tick is currently running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return err
			}
			pid, alive, err := guard.New(cfg.Paths.Marker).HolderPID()
			if err != nil {
				return err
			}
			if alive {
				fmt.Printf("heartbeat running (pid %d)\n", pid)
			} else if pid != 0 {
				fmt.Printf("stale marker (pid %d not running)\n", pid)
			} else {
				fmt.Println("idle")
			}
			return nil
		},
	}
}

func createHistoryCommand(flags *GlobalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent tick outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return err
			}
			db, err := sqlite.New(cfg.History.Path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			if err := db.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			recs, err := db.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("no ticks recorded")
				return nil
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Started", "Finished", "Result", "Exit")
			for _, r := range recs {
				result := "completed"
				exit := strconv.Itoa(r.ExitCode)
				if r.Skipped {
					result = fmt.Sprintf("skipped (pid %d)", r.BlockingPID)
					exit = "-"
				}
				table.Append(
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					result,
					exit,
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of ticks to show")
	return cmd
}

// tickOptions maps config onto one tick.
func tickOptions(cfg config.Config, phase tick.Phase, agentArgs []string, store history.Store) tick.Options {
	return tick.Options{
		MarkerPath:   cfg.Paths.Marker,
		LogPath:      cfg.Paths.HeartbeatLog,
		SecretsPath:  cfg.Paths.Secrets,
		WorkDir:      cfg.Home,
		AgentCommand: cfg.Agent.Command,
		AgentArgs:    agentArgs,
		Phase:        phase,
		Prompts: prompt.Builder{
			FirstBreathFile: cfg.Paths.FirstBreath,
			LastBreathFile:  cfg.Paths.LastBreath,
		},
		Store: store,
	}
}

func openStore(ctx context.Context, cfg config.Config) (history.Store, func(), error) {
	if !cfg.History.Enabled {
		return nil, func() {}, nil
	}
	db, err := sqlite.New(cfg.History.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure history schema: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}
