package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/command"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/config"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/httpapi"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/logging"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/notify"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/source"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

// app holds the wired components for one CLI invocation.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	logFile *os.File

	store   *stream.Store
	pump    *source.Pump
	disp    *command.Dispatcher
	metrics *httpapi.Metrics
}

// loadConfig loads colmon.toml. Without an explicit path a missing file is
// not an error: the defaults apply.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path != "" || !errors.Is(err, config.ErrNotFound) {
			return nil, err
		}
		d := config.Defaults()
		cfg = &d
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newApp wires logger, pump, store and dispatcher. With dashboard set, logs
// go to a file so they do not tear the alternate screen; otherwise to
// stderr.
func newApp(cfg *config.Config, logLevel string, dashboard bool, stderr io.Writer) (*app, error) {
	a := &app{cfg: cfg}

	opts := logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr}
	if logLevel != "" {
		opts.Level = logLevel
	}
	if dashboard {
		path := cfg.Log.File
		if path == "" {
			path = config.DefaultLogFile
		}
		f, err := logging.OpenFile(path)
		if err != nil {
			return nil, err
		}
		a.logFile = f
		opts.Output = f
	}
	log, err := logging.New(opts)
	if err != nil {
		a.closeLog()
		return nil, err
	}
	a.log = log

	a.pump = source.NewPump(log)
	a.store = stream.New(stream.Params{Plates: cfg.Column.Plates, Capacity: cfg.Column.Window},
		stream.WithCanceller(a.pump),
		stream.WithLogger(log),
	)

	recordDir := ""
	if cfg.Recording.Enabled {
		recordDir = cfg.Recording.Dir
	}
	a.disp = command.New(a.store, a.pump, command.Config{
		Live:           liveFactory(cfg.Instrument),
		PollInterval:   cfg.Instrument.PollInterval(),
		ReplayInterval: cfg.Replay.Interval(),
		RecordDir:      recordDir,
		Retention:      cfg.Recording.Retention,
		Logger:         log,
	})

	if n := cfg.Notifications; n.URL != "" && (n.OnComplete || n.OnFailure) {
		a.store.Subscribe(notify.New(n.URL, "colmon", n.OnComplete, n.OnFailure).Hook)
	}
	if cfg.Metrics.Addr != "" {
		a.metrics = httpapi.NewMetrics()
		a.store.Subscribe(a.metrics.Observe(a.store))
	}

	log.Debug().
		Int("plates", cfg.Column.Plates).
		Int("window", cfg.Column.Window).
		Bool("simulate", cfg.Instrument.Simulate).
		Str("recordings", recordDir).
		Msg("wired")
	return a, nil
}

// liveFactory builds live sources for the dispatcher. Without a MODBUS
// transport only the simulator can back a live session.
func liveFactory(ic config.InstrumentConfig) command.LiveFactory {
	return func(plates int) (source.Source, error) {
		if !ic.Simulate {
			return nil, fmt.Errorf("%w: %s", source.ErrNoTransport, ic.Port)
		}
		unit := uint8(ic.UnitID)
		bottom, top := uint16(ic.BottomAddress), uint16(ic.TopAddress)
		bus := source.NewSimulator(source.DefaultSimulatorConfig(unit, bottom, top))
		return source.NewLive(bus, source.LiveConfig{
			UnitID:        unit,
			BottomAddress: bottom,
			TopAddress:    top,
			Plates:        plates,
			Timeout:       ic.Timeout(),
		}), nil
	}
}

// serveHTTP runs the status and metrics listener until ctx ends. It is a
// no-op when metrics.addr is empty.
func (a *app) serveHTTP(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	h := httpapi.NewMux(a.store, a.metrics, a.log)
	go func() {
		if err := httpapi.Serve(ctx, a.cfg.Metrics.Addr, h, a.log); err != nil {
			a.log.Error().Err(err).Str("addr", a.cfg.Metrics.Addr).Msg("http server")
		}
	}()
}

// close stops any active session and releases the log file.
func (a *app) close() {
	if err := a.disp.Shutdown(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn().Err(err).Msg("shutdown")
	}
	a.closeLog()
}

func (a *app) closeLog() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// absPath makes a CLI path argument absolute for log messages and replay.
func absPath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
