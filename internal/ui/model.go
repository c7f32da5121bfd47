// ABOUTME: Bubbletea model for the keyboard synth TUI
// ABOUTME: Maps keys to tone, chord, waveform, gain, mute and restart commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/tonestream/pkg/engine"
	"github.com/Resonate-Protocol/tonestream/pkg/synth"
)

// Controller is what the TUI drives. *engine.Engine satisfies it.
type Controller interface {
	SetTone(frequency float64, w synth.Waveform, gain float64) error
	SetChord(freqs []float64, w synth.Waveform, gain float64) error
	SetWaveform(w synth.Waveform) error
	SetGain(gain float64)
	Mute()
	Snapshot() synth.Snapshot
	Status() engine.Status
	Restart() error
}

// Note is a key bound to a pitch
type Note struct {
	Key       string
	Name      string
	Frequency float64
}

// Notes is the home-row keyboard, C4 to C5
var Notes = []Note{
	{"a", "C4", 261.63},
	{"s", "D4", 293.66},
	{"d", "E4", 329.63},
	{"f", "F4", 349.23},
	{"g", "G4", 392.00},
	{"h", "A4", 440.00},
	{"j", "B4", 493.88},
	{"k", "C5", 523.25},
}

// AMajor is played by the chord key
var AMajor = []float64{440.00, 554.37, 659.25}

const (
	gainStep    = 0.05
	refreshRate = 100 * time.Millisecond
)

// Model represents the TUI state
type Model struct {
	ctrl  Controller
	title string

	// What the next key press plays with
	waveform synth.Waveform
	gain     float64

	// Last refresh from the controller
	playing   string
	snapshot  synth.Snapshot
	status    engine.Status
	lastError string

	showDebug bool
	quitting  bool

	width  int
	height int
}

type tickMsg time.Time

// StatusMsg forces a refresh, e.g. after a remote client changed the tone
type StatusMsg struct{}

// NewModel creates a model driving ctrl
func NewModel(ctrl Controller, title string) Model {
	m := Model{
		ctrl:     ctrl,
		title:    title,
		waveform: synth.Sine,
		gain:     synth.DefaultGain,
	}
	if ctrl != nil {
		snap := ctrl.Snapshot()
		m.waveform = snap.Waveform
		if snap.Gain > 0 {
			m.gain = snap.Gain
		}
	}
	m.refresh()
	return m
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.refresh()
		return m, tickEvery()
	case StatusMsg:
		m.refresh()
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "q", "esc", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "c":
		m.apply("A major", m.ctrl.SetChord(AMajor, m.waveform, m.gain))
	case "1", "2", "3":
		m.waveform = synth.Waveform(key[0] - '1')
		m.apply("", m.ctrl.SetWaveform(m.waveform))
	case "up":
		m.gain = clampGain(m.gain + gainStep)
		m.ctrl.SetGain(m.gain)
	case "down":
		m.gain = clampGain(m.gain - gainStep)
		m.ctrl.SetGain(m.gain)
	case " ", "m":
		m.ctrl.Mute()
		m.playing = "muted"
	case "r":
		m.apply("", m.ctrl.Restart())
	case "i":
		m.showDebug = !m.showDebug
	default:
		for _, n := range Notes {
			if n.Key == key {
				m.apply(n.Name, m.ctrl.SetTone(n.Frequency, m.waveform, m.gain))
				break
			}
		}
	}

	m.refresh()
	return m, nil
}

// apply records the outcome of a command
func (m *Model) apply(playing string, err error) {
	if err != nil {
		m.lastError = err.Error()
		return
	}
	m.lastError = ""
	if playing != "" {
		m.playing = playing
	}
}

func (m *Model) refresh() {
	if m.ctrl == nil {
		return
	}
	m.snapshot = m.ctrl.Snapshot()
	m.status = m.ctrl.Status()
	// Follow waveform changes made by remote clients
	m.waveform = m.snapshot.Waveform
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	keyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping engine...\n"
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	m.row(&b, "Engine:   ", fmt.Sprintf("%s  (%.1fs rendered)", m.status.State, m.status.PhaseTime))
	m.row(&b, "Playing:  ", m.renderTones())
	m.row(&b, "Waveform: ", m.snapshot.Waveform.String())
	m.row(&b, "Gain:     ", fmt.Sprintf("[%s] %.2f", renderBar(m.snapshot.Gain, 20), m.snapshot.Gain))
	m.row(&b, "Buffers:  ", fmt.Sprintf("%d/%d free", m.status.Pool.Free, m.status.Pool.Size))

	if m.status.Err != nil {
		b.WriteString(errorStyle.Render("Fault: " + m.status.Err.Error()))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString(errorStyle.Render("Error: " + m.lastError))
		b.WriteString("\n")
	}

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	b.WriteString(m.renderKeys())
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render(
		"c:A major  1/2/3:sine/square/triangle  ↑/↓:gain  space/m:mute  r:restart  i:info  q:quit"))

	return b.String()
}

func (m Model) row(b *strings.Builder, label, value string) {
	b.WriteString(headerStyle.Render(label))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func (m Model) renderTones() string {
	if len(m.snapshot.Tones) == 0 {
		return "silence"
	}
	parts := make([]string, len(m.snapshot.Tones))
	for i, f := range m.snapshot.Tones {
		parts[i] = fmt.Sprintf("%.2fHz", f)
	}
	s := strings.Join(parts, " + ")
	if m.playing != "" && m.playing != "muted" {
		s = m.playing + "  " + s
	}
	return s
}

func (m Model) renderKeys() string {
	keys := make([]string, len(Notes))
	for i, n := range Notes {
		keys[i] = keyStyle.Render(n.Key) + valueStyle.Render(":"+n.Name)
	}
	return strings.Join(keys, "  ")
}

func (m Model) renderDebug() string {
	p := m.status.Pool
	return valueStyle.Render(fmt.Sprintf(
		"engine %s\nsamples %d  submitted %d  completed %d  in flight %d  spurious %d\n",
		m.status.ID, m.status.Samples, p.Submitted, p.Completed, p.InFlight, p.Spurious))
}

func renderBar(value float64, width int) string {
	filled := int(value*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func clampGain(g float64) float64 {
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	// Keep 0.05 steps from drifting
	return float64(int(g*100+0.5)) / 100
}
