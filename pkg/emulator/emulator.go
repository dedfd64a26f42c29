// Package emulator shows the display in a terminal, driven by the same App
// the firmware runs.
package emulator

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/tuffrabit/tinygo-js8-display/pkg/app"
	"github.com/tuffrabit/tinygo-js8-display/pkg/display"
	"github.com/tuffrabit/tinygo-js8-display/pkg/input"
)

// Columns matches the TFT's text width in landscape.
const Columns = 21

// Rows matches the TFT's text height, clock included.
const Rows = 7

// minShade keeps a fully dimmed screen readable in a terminal.
const minShade = 60

// Keys is an input.Poller fed by key presses. Each press is reported once,
// the next time the App samples the buttons.
type Keys struct {
	pending input.Button
}

func (k *Keys) Press(b input.Button) {
	k.pending |= b
}

func (k *Keys) Pressed() input.Button {
	b := k.pending
	k.pending = 0
	return b
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(app.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Model is the bubbletea model.
type Model struct {
	app    *app.App
	screen *display.Screen
	keys   *Keys
	width  int
}

// New wraps a started or unstarted App drawing on screen and reading keys.
func New(a *app.App, screen *display.Screen, keys *Keys) Model {
	return Model{app: a, screen: screen, keys: keys}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.app.Tick(time.Time(msg))
		return m, tick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "n", "right", "down":
			m.keys.Press(input.ButtonNext)
		case "p", "left", "up":
			m.keys.Press(input.ButtonPrev)
		}
	}
	return m, nil
}

func (m Model) View() string {
	lines := m.screen.Lines()
	clock := ""
	if m.screen.Clock != "" {
		clock = lines[len(lines)-1]
		lines = lines[:len(lines)-1]
	}
	// Message rows above, clock on the bottom row, as on the panel.
	for len(lines) < Rows-1 {
		lines = append(lines, "")
	}
	lines = append(lines[:Rows-1], clock)
	for i, l := range lines {
		lines[i] = fmt.Sprintf("%-*s", Columns, l)
	}

	shade := Shade(m.screen.Level)
	body := lipgloss.NewStyle().Foreground(lipgloss.Color(shade)).Render(strings.Join(lines, "\n"))

	st := m.app.Status()
	help := helpStyle.Render(fmt.Sprintf(
		"feed %s · %d/%d kept · %d total · backlight %d · n/→ next · p/← prev · q quit",
		m.app.Feed().State(), st.Retained, m.app.Store().Cap(), st.Total, m.screen.Level))
	if m.width > 0 {
		help = ansi.Truncate(help, m.width, "…")
	}

	return frameStyle.Render(body) + "\n" + help + "\n"
}

// Shade maps a backlight level to a grey foreground colour.
func Shade(level uint8) string {
	v := int(level)
	if v < minShade {
		v = minShade
	}
	return fmt.Sprintf("#%02x%02x%02x", v, v, v)
}
