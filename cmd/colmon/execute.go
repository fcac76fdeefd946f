package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/tui"
)

// startFunc begins a session once everything is wired. nil starts idle.
type startFunc func(ctx context.Context) error

// executeMonitor opens the dashboard with no active session.
func executeMonitor(cmd *cobra.Command, flags *globalFlags) error {
	return execute(cmd, flags, false, "", nil)
}

// executeLive connects immediately.
func executeLive(cmd *cobra.Command, flags *globalFlags, noTUI bool) error {
	return execute(cmd, flags, noTUI, "", func(a *app) startFunc {
		return a.disp.Connect
	})
}

// executeReplay replays path, or the newest recording when path is empty.
func executeReplay(cmd *cobra.Command, flags *globalFlags, path string, noTUI bool) error {
	path = absPath(path)
	return execute(cmd, flags, noTUI, path, func(a *app) startFunc {
		return func(ctx context.Context) error { return a.disp.StartReplay(ctx, path) }
	})
}

func execute(cmd *cobra.Command, flags *globalFlags, noTUI bool, replayFile string, starter func(*app) startFunc) error {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}
	if replayFile == "" {
		replayFile = cfg.Replay.File
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(cfg, flags.logLevel, !noTUI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()
	a.serveHTTP(ctx)

	var start startFunc
	if starter != nil {
		start = starter(a)
	}
	if noTUI {
		return runHeadless(ctx, a, cmd.OutOrStdout(), start)
	}
	return runDashboard(ctx, a, start, replayFile)
}

// runDashboard starts the session, if any, and runs the TUI until the user
// quits or ctx is cancelled.
func runDashboard(ctx context.Context, a *app, start startFunc, replayFile string) error {
	feed := tui.NewFeed()
	unsubscribe := a.store.Subscribe(feed.Observe)
	defer unsubscribe()

	if start != nil {
		if err := start(ctx); err != nil {
			return err
		}
	}

	model := tui.New(ctx, a.store, a.disp, feed, tui.Options{
		AccentColor: a.cfg.TUI.AccentColor,
		Precision:   a.cfg.TUI.Precision,
		ReplayFile:  replayFile,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		program.Quit()
	}()
	return finishTUI(program)
}

// finishTUI runs the bubbletea program. A killed program is a normal exit.
func finishTUI(program *tea.Program) error {
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// runHeadless prints every store change to w. It returns when a replay
// completes, when the session ends (with the failure cause, if any), or when
// ctx is cancelled.
func runHeadless(ctx context.Context, a *app, w io.Writer, start startFunc) error {
	if start == nil {
		return errors.New("nothing to run without the dashboard: use live or replay")
	}

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}
	precision := a.cfg.TUI.Precision
	unsubscribe := a.store.Subscribe(func(ch stream.Change) {
		fmt.Fprintln(w, formatChange(ch, precision))
		switch {
		case ch.Completed:
			finish(nil)
		case ch.Transitioned() && ch.State == session.Idle:
			finish(ch.Err)
		}
	})
	defer unsubscribe()

	if err := start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}

// formatChange renders a store change as one or more stdout lines.
func formatChange(ch stream.Change, precision int) string {
	switch ch.Kind {
	case stream.ChangeIngest:
		var b strings.Builder
		if ch.Reset {
			b.WriteString("↺ timestamp went backwards, history restarted\n")
		}
		r := ch.Reading
		fmt.Fprintf(&b, "t=%s  T=[%s]  x=[%s]",
			strconv.FormatFloat(r.Timestamp, 'f', 1, 64),
			joinFloats(r.Temperatures, precision),
			joinFloats(r.Compositions, 2))
		if ch.State.IsReplay() {
			fmt.Fprintf(&b, "  %5.1f%%", ch.Progress)
		}
		if ch.Completed {
			b.WriteString("\n✓ replay complete")
		}
		return b.String()
	case stream.ChangeTransition:
		line := fmt.Sprintf("%s %s → %s (%s)", ch.State.Symbol(), ch.Prev.Label(), ch.State.Label(), ch.Event)
		if ch.Err != nil {
			line += ": " + ch.Err.Error()
		}
		return line
	case stream.ChangeClear:
		return "history cleared"
	case stream.ChangeReconfigure:
		return "column reconfigured"
	default:
		return ch.Kind.String()
	}
}

func joinFloats(vs []float64, precision int) string {
	if precision < 1 {
		precision = 1
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', precision, 64)
	}
	return strings.Join(parts, " ")
}
