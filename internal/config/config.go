// Package config parses colmon.toml monitor configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up from the working directory.
const FileName = "colmon.toml"

// DefaultAccentColor is the default TUI accent color (indigo).
const DefaultAccentColor = "#7D56F4"

// Plate count bounds accepted by the column display.
const (
	MinPlates = 1
	MaxPlates = 6
)

// hexColorRe matches a 6-digit hex color string like "#7D56F4".
var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Config is the top-level colmon.toml configuration.
type Config struct {
	Instrument    InstrumentConfig    `toml:"instrument"`
	Column        ColumnConfig        `toml:"column"`
	Replay        ReplayConfig        `toml:"replay"`
	Recording     RecordingConfig     `toml:"recording"`
	TUI           TUIConfig           `toml:"tui"`
	Notifications NotificationsConfig `toml:"notifications"`
	Metrics       MetricsConfig       `toml:"metrics"`
	Log           LogConfig           `toml:"log"`
}

// InstrumentConfig addresses the temperature controller on the serial bus.
type InstrumentConfig struct {
	Port           string `toml:"port"`
	BaudRate       int    `toml:"baud_rate"`
	UnitID         int    `toml:"unit_id"`
	TimeoutMS      int    `toml:"timeout_ms"`
	BottomAddress  int    `toml:"bottom_address"`
	TopAddress     int    `toml:"top_address"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	Simulate       bool   `toml:"simulate"`
}

// Timeout returns the per-read timeout.
func (c InstrumentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// PollInterval returns the live polling interval.
func (c InstrumentConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ColumnConfig describes the column being monitored.
type ColumnConfig struct {
	Plates int `toml:"plates"`
	Window int `toml:"window"` // history readings kept besides the anchor
}

// ReplayConfig controls recorded-session playback.
type ReplayConfig struct {
	IntervalMS int    `toml:"interval_ms"`
	File       string `toml:"file"` // default recording for the replay key; empty = newest
}

// Interval returns the time between replayed readings.
func (c ReplayConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// RecordingConfig controls JSONL recording of live sessions.
type RecordingConfig struct {
	Enabled   bool   `toml:"enabled"`
	Dir       string `toml:"dir"`
	Retention int    `toml:"retention"` // number of recordings to keep; 0 = unlimited
}

// TUIConfig controls the terminal UI appearance.
type TUIConfig struct {
	AccentColor string `toml:"accent_color"`
	Precision   int    `toml:"precision"` // decimals in readouts, 1 or 2
}

// NotificationsConfig controls webhook/ntfy.sh notifications.
type NotificationsConfig struct {
	URL        string `toml:"url"`
	OnComplete bool   `toml:"on_complete"`
	OnFailure  bool   `toml:"on_failure"`
}

// MetricsConfig controls the HTTP status and metrics listener.
type MetricsConfig struct {
	Addr string `toml:"addr"` // empty = disabled
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
	File   string `toml:"file"`   // TUI mode log file; empty = DefaultLogFile
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	in := c.Instrument
	if in.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("instrument.baud_rate must be > 0"))
	}
	if in.UnitID < 0 || in.UnitID > 247 {
		errs = append(errs, fmt.Errorf("instrument.unit_id must be between 0 and 247"))
	}
	if in.TimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("instrument.timeout_ms must be >= 0 (0 = no timeout)"))
	}
	for _, a := range []struct {
		key string
		val int
	}{{"instrument.bottom_address", in.BottomAddress}, {"instrument.top_address", in.TopAddress}} {
		if a.val < 0 || a.val > 0xFFFF {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 65535", a.key))
		}
	}
	if in.PollIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("instrument.poll_interval_ms must be > 0"))
	}

	if c.Column.Plates < MinPlates || c.Column.Plates > MaxPlates {
		errs = append(errs, fmt.Errorf("column.plates must be between %d and %d", MinPlates, MaxPlates))
	}
	if c.Column.Window <= 0 {
		errs = append(errs, fmt.Errorf("column.window must be > 0"))
	}

	if c.Replay.IntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("replay.interval_ms must be > 0"))
	}

	if c.Recording.Enabled && c.Recording.Dir == "" {
		errs = append(errs, fmt.Errorf("recording.dir must be set when recording.enabled is true"))
	}
	if c.Recording.Retention < 0 {
		errs = append(errs, fmt.Errorf("recording.retention must be >= 0 (0 = unlimited)"))
	}

	if c.TUI.AccentColor != "" && !hexColorRe.MatchString(c.TUI.AccentColor) {
		errs = append(errs, fmt.Errorf("tui.accent_color must be a hex color (e.g. \"#7D56F4\")"))
	}
	if c.TUI.Precision < 1 || c.TUI.Precision > 2 {
		errs = append(errs, fmt.Errorf("tui.precision must be 1 or 2"))
	}

	if c.Notifications.URL != "" {
		u, parseErr := url.ParseRequestURI(c.Notifications.URL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
		}
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of trace, debug, info, warn, error, disabled"))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be \"console\" or \"json\""))
	}

	return errors.Join(errs...)
}

// DefaultLogFile is where the dashboard logs when log.file is unset. Like
// the other relative paths it is resolved against the config file.
var DefaultLogFile = filepath.Join(".colmon", "colmon.log")

// Defaults returns a Config with the instrument's factory settings.
func Defaults() Config {
	return Config{
		Instrument: InstrumentConfig{
			BaudRate:       9600,
			UnitID:         10,
			TimeoutMS:      1000,
			BottomAddress:  100,
			TopAddress:     101,
			PollIntervalMS: 1000,
			Simulate:       true,
		},
		Column: ColumnConfig{
			Plates: 1,
			Window: 240,
		},
		Replay: ReplayConfig{
			IntervalMS: 1000,
		},
		Recording: RecordingConfig{
			Enabled:   true,
			Dir:       filepath.Join(".colmon", "sessions"),
			Retention: 20,
		},
		TUI: TUIConfig{
			AccentColor: DefaultAccentColor,
			Precision:   1,
		},
		Notifications: NotificationsConfig{
			OnComplete: true,
			OnFailure:  true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   DefaultLogFile,
		},
	}
}

// Load reads colmon.toml from the given path. If path is empty, it walks up
// from the current working directory looking for colmon.toml. Returns an
// error if the file contains unknown keys (likely typos). Relative directory
// settings are resolved against the config file's directory.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, joinKeys(keys))
	}

	if cfg.Log.File == "" {
		cfg.Log.File = DefaultLogFile
	}

	base := filepath.Dir(path)
	cfg.Recording.Dir = resolve(base, cfg.Recording.Dir)
	cfg.Log.File = resolve(base, cfg.Log.File)
	cfg.Replay.File = resolve(base, cfg.Replay.File)

	return &cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// joinKeys formats a slice of key names for display.
func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

// ErrNotFound is returned by Load when no colmon.toml exists above the
// working directory.
var ErrNotFound = errors.New("config: " + FileName + " not found")

// findConfig walks up from the current directory looking for colmon.toml.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w (searched up from %s)", ErrNotFound, dir)
		}
		dir = parent
	}
}

// InitFile writes a default colmon.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists at %s", FileName, path)
	}

	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}

const template = `# colmon.toml: distillation column monitor configuration

[instrument]
port = ""               # serial device of the instrument
baud_rate = 9600
unit_id = 10
timeout_ms = 1000
bottom_address = 100    # holding register of the reboiler thermocouple
top_address = 101       # holding register of the head thermocouple
poll_interval_ms = 1000
simulate = true         # serve a simulated heating curve instead of the bus

[column]
plates = 1              # 1..6
window = 240            # readings kept on the chart besides the first one

[replay]
interval_ms = 1000
file = ""               # recording replayed by the 'r' key; empty = newest

[recording]
enabled = true
dir = ".colmon/sessions"
retention = 20          # recordings to keep; 0 = unlimited

[tui]
accent_color = "#7D56F4"
precision = 1           # decimals shown in readouts (1 or 2)

[notifications]
url = ""                # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
on_complete = true      # notify when a replay reaches 100%
on_failure = true       # notify when the instrument link fails

[metrics]
addr = ""               # e.g. "127.0.0.1:9464"; empty = disabled

[log]
level = "info"
format = "console"      # console or json
file = ".colmon/colmon.log" # TUI mode log file, relative to this file
`
