package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/config"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/store"
)

func monitorCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Open the dashboard idle; connect or replay from the keyboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeMonitor(cmd, flags)
		},
	}
}

func liveCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Connect to the instrument and stream readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			noTUI, _ := cmd.Flags().GetBool("no-tui")
			return executeLive(cmd, flags, noTUI)
		},
	}
	cmd.Flags().Bool("no-tui", false, "print readings to stdout instead of opening the dashboard")
	return cmd
}

func replayCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay a recorded session (default: the newest recording)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noTUI, _ := cmd.Flags().GetBool("no-tui")
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return executeReplay(cmd, flags, path, noTUI)
		},
	}
	cmd.Flags().Bool("no-tui", false, "print readings to stdout instead of opening the dashboard")
	return cmd
}

func sessionsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath)
			if err != nil {
				return err
			}
			infos, err := store.List(cfg.Recording.Dir)
			if err != nil {
				return err
			}
			formatSessions(cmd.OutOrStdout(), infos)
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold colmon.toml and the .colmon directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			created, err := config.ScaffoldProject(dir)
			if err != nil {
				return err
			}
			formatScaffoldResult(cmd.OutOrStdout(), created)
			return nil
		},
	}
}

// formatSessions prints one line per recording.
func formatSessions(w io.Writer, infos []store.SessionInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No recordings found.")
		return
	}
	fmt.Fprintln(w, "Sessions")
	fmt.Fprintln(w, "────────")
	for _, s := range infos {
		started := "—"
		if !s.StartedAt.IsZero() {
			started = s.StartedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "  %-22s  %s  %5d readings  %d plates  %8s  %s\n",
			s.ID, started, s.Readings, s.Plates, s.Duration().Round(time.Second), s.Path)
	}
}

// formatScaffoldResult prints created paths, or a note when nothing was new.
func formatScaffoldResult(w io.Writer, created []string) {
	if len(created) == 0 {
		fmt.Fprintln(w, "All files already exist — nothing to create.")
		return
	}
	for _, path := range created {
		fmt.Fprintf(w, "Created %s\n", path)
	}
}
