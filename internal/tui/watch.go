// Package tui provides the Bubble Tea watcher for task record files.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	handoffstrings "github.com/joss/handoff/internal/strings"
	"github.com/joss/handoff/internal/task"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

type tickMsg time.Time

type recordMsg struct {
	rec *task.Record
	err error
}

// Model polls one task record file until it reaches a terminal status.
type Model struct {
	path     string
	interval time.Duration

	spinner  spinner.Model
	rec      *task.Record
	readErr  error
	quitting bool
}

// NewWatch creates a watcher model for a task record path.
func NewWatch(path string, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		path:     path,
		interval: interval,
		spinner:  s,
	}
}

// Init starts the spinner and the first poll.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.readRecord, m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) readRecord() tea.Msg {
	rec, err := task.Read(m.path)
	return recordMsg{rec: rec, err: err}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.readRecord, m.tick())

	case recordMsg:
		m.rec = msg.rec
		m.readErr = msg.err
		if m.rec != nil && m.rec.Status.Terminal() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current record state.
func (m Model) View() string {
	if m.readErr != nil {
		return errorStyle.Render("cannot read task record: "+m.readErr.Error()) + "\n"
	}
	if m.rec == nil {
		return m.spinner.View() + " waiting for task record...\n"
	}

	header := titleStyle.Render("task "+m.rec.TaskID) + "\n" +
		infoStyle.Render(m.path)

	var body string
	switch m.rec.Status {
	case task.StatusRunning:
		body = fmt.Sprintf("%s running (pid %d, started %s)",
			m.spinner.View(), m.rec.PID, m.rec.StartedAt)
	case task.StatusCompleted:
		body = doneStyle.Render("completed") + "\n" +
			handoffstrings.Truncate(m.rec.Output, 2000)
	case task.StatusError:
		body = errorStyle.Render("error") + "\n" +
			handoffstrings.Truncate(m.rec.Error, 2000)
	case task.StatusTimeout:
		body = errorStyle.Render("timeout") + "\n" + m.rec.Error
	}

	out := boxStyle.Render(header+"\n\n"+body) + "\n"
	if !m.quitting {
		out += infoStyle.Render("q to quit") + "\n"
	}
	return out
}

// Watch runs the poller until the record reaches a terminal status and
// returns the final record.
func Watch(path string, interval time.Duration) (*task.Record, error) {
	p := tea.NewProgram(NewWatch(path, interval))
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("unexpected watch model type")
	}
	return m.rec, m.readErr
}
