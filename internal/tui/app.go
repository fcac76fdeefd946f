package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/projection"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/tui/components"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/tui/panels"
)

// Controller is the command surface the dashboard drives. The command
// package's Dispatcher implements it.
type Controller interface {
	ToggleConnection(ctx context.Context) error
	StartReplay(ctx context.Context, path string) error
	TogglePause(ctx context.Context) error
	CancelReplay(ctx context.Context) error
	SetPlates(n int) error
	SourceName() string
	RecordingPath() string
}

// Snapshotter is the read side of the stream store.
type Snapshotter interface {
	Snapshot() stream.Snapshot
}

// Options configure the dashboard.
type Options struct {
	AccentColor string
	Precision   int
	ReplayFile  string // replayed by the r key; "" picks the newest recording
}

// storeChangedMsg carries the events queued since the previous redraw.
type storeChangedMsg struct{ events []Event }

// commandDoneMsg reports the outcome of a controller call.
type commandDoneMsg struct {
	name string
	err  error
}

// tickMsg is sent every second for the clock.
type tickMsg time.Time

// Model is the root bubbletea model for the colmon dashboard.
type Model struct {
	ctx   context.Context
	store Snapshotter
	ctrl  Controller
	feed  *Feed
	opts  Options

	snap   stream.Snapshot
	source string
	rec    string

	keys     KeyMap
	help     help.Model
	progress progress.Model
	events   components.LogView

	layout Layout
	theme  Theme
	width  int
	height int

	status string
	now    time.Time
}

// New creates the dashboard model. feed must already be subscribed to the
// store behind snap.
func New(ctx context.Context, snap Snapshotter, ctrl Controller, feed *Feed, opts Options) Model {
	th := NewTheme(opts.AccentColor)
	layout := Calculate(80, 24)
	evW, evH := innerDims(layout.Events)

	pb := progress.New(progress.WithSolidFill(string(th.Accent())), progress.WithoutPercentage())

	m := Model{
		ctx:      ctx,
		store:    snap,
		ctrl:     ctrl,
		feed:     feed,
		opts:     opts,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		progress: pb,
		events:   components.NewLogView(evW, evH),
		layout:   layout,
		theme:    th,
		width:    80,
		height:   24,
		now:      time.Now(),
	}
	m.refresh()
	return m
}

// Init starts the store listener and the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.ctx, m.feed), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks until the store signals a change, then drains the
// queued events. Signals that arrive while the model is busy collapse into
// one message.
func waitForChange(ctx context.Context, f *Feed) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.Wake():
			return storeChangedMsg{events: f.Drain()}
		case <-ctx.Done():
			return nil
		}
	}
}

// Update handles all incoming bubbletea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case storeChangedMsg:
		m.refresh()
		m = m.appendEvents(msg.events)
		return m, waitForChange(m.ctx, m.feed)
	case commandDoneMsg:
		m.refresh()
		m.status = ""
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.name, msg.err)
			m = m.appendEvents([]Event{{At: m.now, Kind: EventCommandError, Message: m.status}})
		}
		return m, nil
	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.layout = Calculate(msg.Width, msg.Height)
	if !m.layout.TooSmall {
		evW, evH := innerDims(m.layout.Events)
		m.events = m.events.SetSize(evW, evH)
		chartW, _ := innerDims(m.layout.Chart)
		m.progress.Width = max(chartW-8, 10)
		m.help.Width = msg.Width
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Connect):
		return m, m.run("connect", func(ctx context.Context) error { return m.ctrl.ToggleConnection(ctx) })
	case key.Matches(msg, m.keys.Replay):
		path := m.opts.ReplayFile
		return m, m.run("replay", func(ctx context.Context) error { return m.ctrl.StartReplay(ctx, path) })
	case key.Matches(msg, m.keys.Pause):
		return m, m.run("pause", func(ctx context.Context) error { return m.ctrl.TogglePause(ctx) })
	case key.Matches(msg, m.keys.Cancel):
		return m, m.run("cancel", func(ctx context.Context) error { return m.ctrl.CancelReplay(ctx) })
	case key.Matches(msg, m.keys.MorePlates):
		n := m.snap.Params.Plates + 1
		return m, m.run("plates", func(context.Context) error { return m.ctrl.SetPlates(n) })
	case key.Matches(msg, m.keys.LessPlates):
		n := m.snap.Params.Plates - 1
		return m, m.run("plates", func(context.Context) error { return m.ctrl.SetPlates(n) })
	case key.Matches(msg, m.keys.Follow):
		m.events = m.events.ToggleFollow()
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

// run executes a controller call off the update loop. Disconnect and cancel
// wait for the source goroutine to exit.
func (m Model) run(name string, fn func(context.Context) error) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return commandDoneMsg{name: name, err: fn(ctx)}
	}
}

// refresh re-reads the store snapshot and controller state.
func (m *Model) refresh() {
	m.snap = m.store.Snapshot()
	if m.ctrl != nil {
		m.source = m.ctrl.SourceName()
		m.rec = m.ctrl.RecordingPath()
	}
}

func (m Model) appendEvents(evs []Event) Model {
	if len(evs) == 0 {
		return m
	}
	lines := make([]string, len(evs))
	for i, e := range evs {
		lines[i] = m.theme.RenderEvent(e, m.layout.Events.Width)
	}
	m.events = m.events.AppendLines(lines...)
	return m
}

// Snapshot returns the store snapshot the model last rendered from.
func (m Model) Snapshot() stream.Snapshot { return m.snap }

// View renders the dashboard.
func (m Model) View() string {
	if m.layout.TooSmall {
		msg := fmt.Sprintf("Terminal too small (%dx%d).\nPlease resize to at least 80x24.", m.width, m.height)
		return lipgloss.NewStyle().
			Width(m.width).
			Align(lipgloss.Center).
			Render(msg)
	}

	snap := m.snap

	elapsed := ""
	if snap.HasLatest && len(snap.Readings) > 0 {
		elapsed = projection.ElapsedLabel(snap.Readings[0].Timestamp, snap.Latest.Timestamp)
	}
	header := panels.RenderHeader(panels.HeaderProps{
		Source:      m.source,
		StateSymbol: snap.State.Symbol(),
		StateLabel:  snap.State.Label(),
		Plates:      snap.Params.Plates,
		Elapsed:     elapsed,
		Recording:   m.rec,
		Clock:       m.now,
	}, m.layout.Header.Width, m.theme.AccentHeaderStyle())

	keys := m.keys.forState(snap.State, snap.Progress < reading.CompleteFraction)
	footer := panels.RenderFooter(panels.FooterProps{
		Help:   m.help.View(keys),
		Status: m.status,
	}, m.layout.Footer.Width)

	border := m.theme.PanelBorderStyle()
	colW, colH := innerDims(m.layout.Column)
	compW, compH := innerDims(m.layout.Composition)
	chartW, chartH := innerDims(m.layout.Chart)
	evW, evH := innerDims(m.layout.Events)

	sidebar := lipgloss.JoinVertical(lipgloss.Left,
		border.Width(colW).Height(colH).Render(m.columnView(colW, colH)),
		border.Width(compW).Height(compH).Render(m.compositionView(compW, compH)),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		border.Width(chartW).Height(chartH).Render(m.chartView(chartW, chartH)),
		border.Width(evW).Height(evH).Render(m.events.View()),
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, right)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) columnView(w, h int) string {
	plates := make([]panels.PlateReadout, m.snap.Params.Plates)
	for i := range plates {
		plates[i] = panels.PlateReadout{
			Name:  fmt.Sprintf("Plate %d", i+1),
			Value: projection.LatestValue(m.snap.Readings, i, m.opts.Precision),
		}
	}
	return titleStyle.Render("Column") + "\n" + panels.RenderColumn(plates, w, h-1)
}

func (m Model) compositionView(w, h int) string {
	var rows []panels.CompositionRow
	if m.snap.HasLatest {
		rows = make([]panels.CompositionRow, m.snap.Params.Plates)
		for i := range rows {
			f, _ := m.snap.Latest.Composition(i)
			rows[i] = panels.CompositionRow{
				Name:     fmt.Sprintf("Plate %d", i+1),
				Text:     projection.LatestComposition(m.snap.Readings, i, 2),
				Fraction: f,
			}
		}
	}
	return titleStyle.Render("Composition (x EtOH)") + "\n" + panels.RenderCompositions(rows, w, h-1)
}

// chartView draws one sparkline per plate, top plate first, over a shared
// timeline, with the replay progress bar underneath.
func (m Model) chartView(w, h int) string {
	series := projection.PlateSeries(m.snap.Readings, m.snap.Params.Plates)
	lo, hi := components.Bounds(series)

	const labelW = 10
	sparkW := max(w-labelW, 1)

	lines := []string{titleStyle.Render(fmt.Sprintf("Temperature °C  %.1f–%.1f", lo, hi))}
	for i := len(series) - 1; i >= 0; i-- {
		s := series[i]
		name := fmt.Sprintf("%-*s", labelW, s.Name)
		lines = append(lines, name+components.Sparkline(s.Points, sparkW, lo, hi, m.theme.Accent()))
	}
	if len(series) > 0 {
		lines = append(lines, fmt.Sprintf("%*s", labelW, "")+components.Timeline(series[0].Points, sparkW))
	}

	if m.snap.State.IsReplay() {
		bar := m.progress.ViewAs(m.snap.Progress / reading.CompleteFraction)
		lines = append(lines, "", fmt.Sprintf("%s %5.1f%%", bar, m.snap.Progress))
	}
	if len(lines) > h {
		lines = lines[:h]
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
