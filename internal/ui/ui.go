package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/projector/internal/models"
	"github.com/desertthunder/projector/internal/services"
)

// pollInterval is how often the watcher asks the relay for a new snapshot.
const pollInterval = 2 * time.Second

type tickMsg time.Time

type playbackMsg struct {
	state *models.PlaybackState
	err   error
}

// keyMap defines the key bindings for the watcher.
type keyMap struct {
	refresh key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Model is the terminal now-playing watcher. It polls a running relay and
// renders whatever the display page would show.
type Model struct {
	ctx   context.Context
	relay *services.RelayClient
	bar   progress.Model
	state *models.PlaybackState
	err   error
	keys  keyMap
	width int
}

// NewModel creates a watcher polling the given relay.
func NewModel(ctx context.Context, relay *services.RelayClient) Model {
	bar := progress.New(progress.WithDefaultGradient())
	bar.ShowPercentage = false

	return Model{
		ctx:   ctx,
		relay: relay,
		bar:   bar,
		keys:  newKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		state, err := m.relay.NowPlaying(m.ctx)
		return playbackMsg{state: state, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 4
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			return m, m.fetch()
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())

	case playbackMsg:
		m.state = msg.state
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	header := styles.accent.Render("projector watch") + styles.dim.Render("  ·  r refresh · q quit")

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s\n", header, styles.err.Render(m.err.Error()))
	}

	if m.state == nil || m.state.Title == nil {
		return fmt.Sprintf("%s\n\n%s\n", header, styles.dim.Render("Nothing playing"))
	}

	marker := "⏸"
	if m.state.IsPlaying {
		marker = "▶"
	}

	line := fmt.Sprintf("%s %s", marker, styles.title.Render(*m.state.Title))
	if m.state.Artist != nil {
		line += styles.dim.Render(" — " + *m.state.Artist)
	}

	device := ""
	if m.state.DeviceName != nil {
		device = styles.dim.Render("on " + *m.state.DeviceName)
	}

	var pct float64
	if m.state.DurationMs > 0 {
		pct = float64(m.state.ProgressMs) / float64(m.state.DurationMs)
	}

	position := styles.dim.Render(fmt.Sprintf("%s / %s",
		formatMs(m.state.ProgressMs), formatMs(m.state.DurationMs)))

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s %s\n",
		header, line, device, m.bar.ViewAs(pct), position)
}

func formatMs(ms int) string {
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
