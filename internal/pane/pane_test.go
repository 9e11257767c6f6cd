package pane

import (
	"context"
	"testing"
	"time"
)

type fakeWaiter struct {
	registered   map[string]bool
	completeWait bool
	exitedWait   bool
}

func newFakeWaiter() *fakeWaiter {
	return &fakeWaiter{registered: make(map[string]bool)}
}

func (w *fakeWaiter) Register(pane string)   { w.registered[pane] = true }
func (w *fakeWaiter) Unregister(pane string) { delete(w.registered, pane) }
func (w *fakeWaiter) WaitForComplete(pane string, timeout time.Duration) bool {
	return w.completeWait
}
func (w *fakeWaiter) WaitForExited(pane string, timeout time.Duration) bool {
	return w.exitedWait
}

func TestManagerLaunchRegistersBeforeCurrentIsSet(t *testing.T) {
	mux := NewFakeMultiplexer()
	waiter := newFakeWaiter()
	m := NewManager(mux, waiter)

	paneID, err := m.Launch(context.Background(), "/tmp", "echo hi", nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if !waiter.registered[paneID] {
		t.Fatalf("pane %s was not registered", paneID)
	}
	if m.Current() != paneID {
		t.Fatalf("Current() = %q, want %q", m.Current(), paneID)
	}
}

// orderingMux wraps FakeMultiplexer to record the sequence of SplitPane/SendKeys calls,
// used to assert Launch's registration ordering.
type orderingMux struct {
	*FakeMultiplexer
	log *[]string
}

func (m *orderingMux) SplitPane(ctx context.Context, cwd, command string, env map[string]string) (string, error) {
	*m.log = append(*m.log, "split")
	return m.FakeMultiplexer.SplitPane(ctx, cwd, command, env)
}

func (m *orderingMux) SendKeys(ctx context.Context, paneID, text string, enter bool) error {
	*m.log = append(*m.log, "sendkeys:"+text)
	return m.FakeMultiplexer.SendKeys(ctx, paneID, text, enter)
}

type orderingWaiter struct {
	*fakeWaiter
	log *[]string
}

func (w *orderingWaiter) Register(pane string) {
	*w.log = append(*w.log, "register")
	w.fakeWaiter.Register(pane)
}

func TestManagerLaunchRegistersBeforeSendingRealCommand(t *testing.T) {
	var log []string
	mux := &orderingMux{FakeMultiplexer: NewFakeMultiplexer(), log: &log}
	waiter := &orderingWaiter{fakeWaiter: newFakeWaiter(), log: &log}
	m := NewManager(mux, waiter)

	paneID, err := m.Launch(context.Background(), "/tmp", "real-command", nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	want := []string{"split", "register", "sendkeys:real-command"}
	if len(log) != len(want) {
		t.Fatalf("event log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("event log = %v, want %v", log, want)
		}
	}
	if mux.Panes[paneID].Command != "" {
		t.Fatalf("SplitPane should be called with no command, got %q", mux.Panes[paneID].Command)
	}
}

func TestManagerLaunchRejectsSecondConcurrentPane(t *testing.T) {
	mux := NewFakeMultiplexer()
	waiter := newFakeWaiter()
	m := NewManager(mux, waiter)

	if _, err := m.Launch(context.Background(), "/tmp", "cmd1", nil); err != nil {
		t.Fatalf("first Launch: %v", err)
	}
	if _, err := m.Launch(context.Background(), "/tmp", "cmd2", nil); err == nil {
		t.Fatalf("expected error launching a second concurrent pane")
	}
}

func TestManagerCloseUnregistersAndClearsCurrent(t *testing.T) {
	mux := NewFakeMultiplexer()
	waiter := newFakeWaiter()
	waiter.exitedWait = true
	m := NewManager(mux, waiter)

	paneID, err := m.Launch(context.Background(), "/tmp", "cmd", nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	m.Close(context.Background(), paneID)

	if waiter.registered[paneID] {
		t.Fatalf("pane %s still registered after Close", paneID)
	}
	if m.Current() != "" {
		t.Fatalf("Current() = %q, want empty after Close", m.Current())
	}
	p := mux.Panes[paneID]
	if p.Interrupts == 0 {
		t.Fatalf("expected Close to send an interrupt")
	}
	if !p.Killed {
		t.Fatalf("expected Close to kill the pane")
	}
}

func TestShellQuoteEscapesEmbeddedQuotes(t *testing.T) {
	got := ShellQuote(`it's "fine"`)
	want := `'it'\''s "fine"'`
	if got != want {
		t.Fatalf("ShellQuote() = %q, want %q", got, want)
	}
}

func TestBuildInteractiveCommand(t *testing.T) {
	got := BuildInteractiveCommand("claude", "/work", 9321, "sonnet", true, []string{"bash", "edit"}, "hello 'world'")
	want := `cd '/work' && ORCHESTRATOR_PORT=9321 claude --model 'sonnet' --dangerously-skip-permissions --allowed-tools 'bash edit' 'hello '\''world'\'''`
	if got != want {
		t.Fatalf("BuildInteractiveCommand() =\n%q\nwant\n%q", got, want)
	}
}

func TestContentHashStableForSameContent(t *testing.T) {
	a := ContentHash("hello")
	b := ContentHash("hello")
	c := ContentHash("world")
	if a != b {
		t.Fatalf("expected stable hash for identical content")
	}
	if a == c {
		t.Fatalf("expected different hash for different content")
	}
}
