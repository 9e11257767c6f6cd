// Package display implements the progress display dependency: a collaborator passed
// into the runner and loop tools, rather than a process-wide mutable singleton. Tools
// emit structured progress events to it instead of driving the terminal directly.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// EventKind tags a progress event.
type EventKind int

const (
	EventStepStart EventKind = iota
	EventStepSkipped
	EventStepSucceeded
	EventStepFailed
	EventLoopEnter
	EventLoopExit
	EventRunSummary
)

// Event is a structured progress notification.
type Event struct {
	Kind      EventKind
	StepName  string
	Message   string
	IndentLvl int
}

// Display is the interface the runner and loop tools depend on. It is injected at
// startup, never reached through package state.
type Display interface {
	Emit(Event)
}

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// TermDisplay renders events as colored, indented lines to an io.Writer — the default
// production Display.
type TermDisplay struct {
	Out     io.Writer
	NoColor bool
}

// NewTermDisplay returns a Display writing to out.
func NewTermDisplay(out io.Writer, noColor bool) *TermDisplay {
	return &TermDisplay{Out: out, NoColor: noColor}
}

func (d *TermDisplay) Emit(e Event) {
	indent := strings.Repeat("  ", e.IndentLvl)
	switch e.Kind {
	case EventStepStart:
		fmt.Fprintf(d.Out, "%s> %s\n", indent, e.StepName)
	case EventStepSkipped:
		fmt.Fprintf(d.Out, "%s%s\n", indent, d.style(skipStyle, fmt.Sprintf("- %s skipped (%s)", e.StepName, e.Message)))
	case EventStepSucceeded:
		fmt.Fprintf(d.Out, "%s%s\n", indent, d.style(successStyle, fmt.Sprintf("✓ %s", e.StepName)))
	case EventStepFailed:
		msg := truncate.StringWithTail(e.Message, 200, "…")
		fmt.Fprintf(d.Out, "%s%s\n", indent, d.style(bannerStyle, fmt.Sprintf("✗ %s: %s", e.StepName, msg)))
	case EventLoopEnter, EventLoopExit:
		fmt.Fprintf(d.Out, "%s%s\n", indent, e.Message)
	case EventRunSummary:
		fmt.Fprintf(d.Out, "\n%s\n", e.Message)
	}
}

func (d *TermDisplay) style(s lipgloss.Style, text string) string {
	if d.NoColor {
		return text
	}
	return s.Render(text)
}

// Noop discards every event, used by tests and by tool code that has no display wired.
type Noop struct{}

func (Noop) Emit(Event) {}
