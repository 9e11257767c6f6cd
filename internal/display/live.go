package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// maxLiveWidth bounds a rendered progress line so captured pane content and long step
// names don't wrap the live view.
const maxLiveWidth = 100

// Live renders progress as an in-place terminal view driven by a bubbletea program,
// with a spinner on the running step. It is the optional richer Display behind the run
// command's --live flag; TermDisplay remains the plain default.
type Live struct {
	prog *tea.Program
	done chan struct{}
}

type liveQuitMsg struct{}

// NewLive starts the live view writing to out and returns it ready to receive events.
func NewLive(out io.Writer) *Live {
	m := liveModel{spin: spinner.New(spinner.WithSpinner(spinner.Dot))}
	prog := tea.NewProgram(m, tea.WithOutput(out), tea.WithoutSignalHandler())
	l := &Live{prog: prog, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		_, _ = prog.Run()
	}()
	return l
}

// Emit implements Display. Safe to call from the step goroutine; bubbletea serializes
// delivery into its own loop.
func (l *Live) Emit(e Event) {
	l.prog.Send(e)
}

// Stop ends the program and waits for the final frame to flush.
func (l *Live) Stop() {
	l.prog.Send(liveQuitMsg{})
	<-l.done
}

var (
	liveRunStyle  = lipgloss.NewStyle().Bold(true)
	liveDimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	liveOkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	liveFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type liveModel struct {
	spin    spinner.Model
	current string
	indent  int
	lines   []string
	summary string
}

func (m liveModel) Init() tea.Cmd { return m.spin.Tick }

func (m liveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case Event:
		return m.applyEvent(msg), nil
	case liveQuitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m liveModel) applyEvent(e Event) liveModel {
	indent := strings.Repeat("  ", e.IndentLvl)
	switch e.Kind {
	case EventStepStart:
		m.current = e.StepName
		m.indent = e.IndentLvl
	case EventStepSkipped:
		m.lines = append(m.lines, indent+liveDimStyle.Render(fmt.Sprintf("- %s skipped (%s)", e.StepName, e.Message)))
	case EventStepSucceeded:
		m.current = ""
		m.lines = append(m.lines, indent+liveOkStyle.Render("✓ "+e.StepName))
	case EventStepFailed:
		m.current = ""
		m.lines = append(m.lines, indent+liveFailStyle.Render(fmt.Sprintf("✗ %s: %s", e.StepName, e.Message)))
	case EventLoopEnter, EventLoopExit:
		m.lines = append(m.lines, indent+liveDimStyle.Render(e.Message))
	case EventRunSummary:
		m.current = ""
		m.summary = e.Message
	}
	return m
}

func (m liveModel) View() string {
	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(truncate.StringWithTail(line, maxLiveWidth, "…"))
		b.WriteByte('\n')
	}
	if m.current != "" {
		running := strings.Repeat("  ", m.indent) + m.spin.View() + liveRunStyle.Render(m.current)
		b.WriteString(truncate.StringWithTail(running, maxLiveWidth, "…"))
		b.WriteByte('\n')
	}
	if m.summary != "" {
		b.WriteByte('\n')
		b.WriteString(m.summary)
		b.WriteByte('\n')
	}
	return b.String()
}
