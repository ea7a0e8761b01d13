// Package tui renders the voice search controller in the terminal.
package tui

import (
	"context"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voice-search-service/internal/service/search"
)

// Searcher is the part of the search controller the terminal view drives.
type Searcher interface {
	State() search.UIState
	Running() bool
	ActivateCapture(ctx context.Context) error
}

// StateMsg carries a controller state change into the program.
type StateMsg struct{ State search.UIState }

type activatedMsg struct{ err error }
type tickMsg time.Time

const notifyBuffer = 64

var (
	notifier   *forwarder
	notifierMu sync.Mutex
)

// forwarder delivers state changes to the program one at a time, in the
// order Notify received them.
type forwarder struct {
	ch chan search.UIState
}

func newForwarder(send func(tea.Msg)) *forwarder {
	f := &forwarder{ch: make(chan search.UIState, notifyBuffer)}
	go func() {
		for s := range f.ch {
			send(StateMsg{State: s})
		}
	}()
	return f
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("231"))
	buttonStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("16")).Background(lipgloss.Color("39")).Padding(0, 1)
	listeningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	speechStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

var spinner = []string{"◐", "◓", "◑", "◒"}

type model struct {
	ctx     context.Context
	search  Searcher
	state   search.UIState
	running bool
	frame   int
	err     error
}

func newModel(ctx context.Context, s Searcher) model {
	return model{ctx: ctx, search: s, state: s.State(), running: s.Running()}
}

// NewProgram creates the terminal program and registers it for Notify.
func NewProgram(ctx context.Context, s Searcher) *tea.Program {
	p := tea.NewProgram(newModel(ctx, s), tea.WithAltScreen(), tea.WithContext(ctx))
	setForwarder(newForwarder(p.Send))
	return p
}

// Notify forwards a state change to the running program, if any.
func Notify(s search.UIState) {
	notifierMu.Lock()
	defer notifierMu.Unlock()
	if notifier != nil {
		notifier.ch <- s
	}
}

func setForwarder(f *forwarder) {
	notifierMu.Lock()
	defer notifierMu.Unlock()
	if notifier != nil {
		close(notifier.ch)
	}
	notifier = f
}

func tick() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) activate() tea.Cmd {
	return func() tea.Msg {
		return activatedMsg{err: m.search.ActivateCapture(m.ctx)}
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter", " ":
			return m, m.activate()
		}

	case activatedMsg:
		m.err = msg.err
		m.state = m.search.State()
		m.running = m.search.Running()

	case StateMsg:
		m.state = msg.State

	case tickMsg:
		m.frame++
		m.state = m.search.State()
		m.running = m.search.Running()
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("voice search"))
	b.WriteString("\n\n")

	if m.state.ShowSearchButton {
		b.WriteString(buttonStyle.Render("search"))
	} else {
		b.WriteString(listeningStyle.Render(spinner[m.frame%len(spinner)] + " listening"))
		if !m.running {
			// Hidden button with nothing listening: recognition failed.
			b.WriteString(errorStyle.Render("  stopped, press enter to retry"))
		}
	}
	b.WriteString("\n\n")

	if m.state.SpeechData != "" {
		b.WriteString(speechStyle.Render(m.state.SpeechData))
		b.WriteString("\n\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n\n")
	}

	b.WriteString(hintStyle.Render("enter/space: search   q: quit"))
	b.WriteString("\n")
	return b.String()
}
