package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eternalrp/eternalrp/metrics"
)

// StatusData is the snapshot the status view renders. It carries the same
// fields the non-TUI status output prints.
type StatusData struct {
	ListenerState  string
	ActiveProvider string
	Track          string
	Artist         string
	Album          string
	Position       int // seconds, -1 when unknown
	Metrics        metrics.Snapshot
}

// statusKeyMap defines key bindings for the status view.
type statusKeyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var statusKeys = statusKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

// refreshMsg carries a fresh snapshot into the model.
type refreshMsg StatusData

// StatusModel displays the live session status: connection state, the
// current track, and the session counters.
type StatusModel struct {
	source   func() StatusData
	interval time.Duration
	data     StatusData
	width    int
	height   int
	quitting bool
}

// NewStatusModel creates a status model that re-reads source on every
// refresh interval.
func NewStatusModel(source func() StatusData, interval time.Duration) StatusModel {
	if interval <= 0 {
		interval = time.Second
	}
	return StatusModel{
		source:   source,
		interval: interval,
		data:     source(),
	}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	return m.scheduleRefresh()
}

func (m StatusModel) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return refreshMsg(m.source())
	})
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case refreshMsg:
		m.data = StatusData(msg)
		return m, m.scheduleRefresh()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, statusKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, statusKeys.Refresh):
			m.data = m.source()
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b []string
	b = append(b, TitleStyle.Render("eternalrp status"))

	state := m.data.ListenerState
	if state == "" {
		state = "unknown"
	}
	b = append(b,
		LabelStyle.Render("Connection:")+StateStyle(state).Render(state),
		LabelStyle.Render("Provider:")+ValueStyle.Render(orDash(m.data.ActiveProvider)),
	)

	b = append(b, "", TitleStyle.Render("Now playing"))
	if m.data.Track == "" {
		b = append(b, LabelStyle.Render("Track:")+WarningStyle.Render("nothing playing"))
	} else {
		b = append(b,
			LabelStyle.Render("Track:")+ValueStyle.Render(m.data.Track),
			LabelStyle.Render("Artist:")+ValueStyle.Render(orDash(m.data.Artist)),
			LabelStyle.Render("Album:")+ValueStyle.Render(orDash(m.data.Album)),
			LabelStyle.Render("Position:")+ValueStyle.Render(formatPosition(m.data.Position)),
		)
	}

	s := m.data.Metrics
	row1 := lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Frames", s.FramesRead),
		renderStatBox("Reconnects", s.Reconnects),
		renderStatBox("Publishes", s.Publishes),
	)
	row2 := lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Sink Errors", s.SinkErrors),
		renderStatBox("Joins", s.JoinEvents),
		renderStatBox("Cover Hits", s.CoverCacheHits),
	)
	b = append(b, "", TitleStyle.Render("Counters"), row1, row2)

	b = append(b, HelpStyle.Render("q quit • r refresh"))

	return lipgloss.JoinVertical(lipgloss.Left, b...)
}

// renderStatBox renders a single counter in a bordered box.
func renderStatBox(label string, value int64) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		StatValueStyle.Render(fmt.Sprintf("%d", value)),
		StatLabelStyle.Render(label),
	)
	return StatBoxStyle.Render(content)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatPosition(seconds int) string {
	if seconds < 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// RunStatusTUI runs the status view full-screen until the user quits.
func RunStatusTUI(source func() StatusData, interval time.Duration) error {
	model := NewStatusModel(source, interval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// IsTUISupported returns true when stdout is an interactive terminal.
func IsTUISupported() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
