// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the keyboard synth
package ui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs the keyboard synth until the user quits
type TUI struct {
	program *tea.Program
}

// New creates the TUI for ctrl
func New(ctrl Controller, title string) *TUI {
	return newTUI(ctrl, title, tea.WithAltScreen())
}

func newTUI(ctrl Controller, title string, opts ...tea.ProgramOption) *TUI {
	return &TUI{
		program: tea.NewProgram(NewModel(ctrl, title), opts...),
	}
}

// Run blocks until the user quits
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Refresh redraws with the controller's current state
func (t *TUI) Refresh() {
	t.program.Send(StatusMsg{})
}

// Stop quits the program from outside the UI
func (t *TUI) Stop() {
	t.program.Quit()
}

// Refresher forwards refresh requests to a TUI attached later. Engine and
// control-server callbacks may call Refresh from any goroutine, before or
// after Attach.
type Refresher struct {
	tui atomic.Pointer[TUI]
}

// Attach starts forwarding to t
func (r *Refresher) Attach(t *TUI) {
	r.tui.Store(t)
}

// Refresh redraws the attached TUI, if any
func (r *Refresher) Refresh() {
	if t := r.tui.Load(); t != nil {
		t.Refresh()
	}
}
