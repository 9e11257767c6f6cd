// Package pane implements the pane lifecycle manager: create a pane in the
// host terminal multiplexer, launch a command in it with the signal-server port injected,
// arrange for graceful termination, and capture scrollback content.
package pane

import (
	"context"
	"crypto/md5" //nolint:gosec // used only for idle-detection content hashing, not security
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PaneError marks pane creation failure or an oversized prompt.
type PaneError struct {
	Pane string
	Err  error
}

func (e *PaneError) Error() string {
	if e.Pane != "" {
		return fmt.Sprintf("pane %s: %v", e.Pane, e.Err)
	}
	return fmt.Sprintf("pane error: %v", e.Err)
}

func (e *PaneError) Unwrap() error { return e.Err }

// MaxPromptLength is the default configured character limit for external-interactive
// prompts.
const MaxPromptLength = 100000

// Multiplexer is the seam between the pane manager and the concrete terminal
// multiplexer, keeping the manager backend-agnostic and testable.
type Multiplexer interface {
	// SplitPane creates a new pane running the given shell command with env applied,
	// returning its pane id (e.g. "%12").
	SplitPane(ctx context.Context, cwd, command string, env map[string]string) (string, error)
	SendKeys(ctx context.Context, paneID, text string, enter bool) error
	SendInterrupt(ctx context.Context, paneID string) error
	KillPane(ctx context.Context, paneID string) error
	PaneExists(ctx context.Context, paneID string) (bool, error)
	CapturePane(ctx context.Context, paneID string) (string, error)
}

// SignalWaiter is the subset of *signalsrv.Server the pane manager depends on. Declared
// here (rather than importing signalsrv directly into the interface) keeps this package
// decoupled from the server's concrete type for testing.
type SignalWaiter interface {
	Register(pane string)
	Unregister(pane string)
	WaitForComplete(pane string, timeout time.Duration) bool
	WaitForExited(pane string, timeout time.Duration) bool
}

// Manager owns "the current pane": exactly one pane is current at any time, or none.
type Manager struct {
	mux    Multiplexer
	server SignalWaiter

	current string
}

// NewManager constructs a pane manager over a multiplexer backend and the signal server.
func NewManager(mux Multiplexer, server SignalWaiter) *Manager {
	return &Manager{mux: mux, server: server}
}

// Current returns the current pane id, or "" if none.
func (m *Manager) Current() string { return m.current }

// Launch creates a pane holding an idle shell, registers it with the signal server, and
// only then sends command into it. Splitting with no command first means the pane id is
// known and registered before the real process starts, so register_pane(p) always
// happens-before any launch that could cause p to POST.
func (m *Manager) Launch(ctx context.Context, cwd, command string, env map[string]string) (string, error) {
	if m.current != "" {
		return "", &PaneError{Err: fmt.Errorf("a pane is already current: %s", m.current)}
	}
	paneID, err := m.mux.SplitPane(ctx, cwd, "", env)
	if err != nil {
		return "", &PaneError{Err: fmt.Errorf("creating pane: %w", err)}
	}
	m.server.Register(paneID)
	m.current = paneID
	if err := m.mux.SendKeys(ctx, paneID, command, true); err != nil {
		m.server.Unregister(paneID)
		m.current = ""
		return "", &PaneError{Pane: paneID, Err: fmt.Errorf("launching command: %w", err)}
	}
	return paneID, nil
}

// Close runs the graceful pane termination protocol:
//  1. Ctrl-C
//  2. Ctrl-D twice with small pauses
//  3. wait_for_exited(pane, 30s), ignoring timeout
//  4. kill pane (idempotent, errors swallowed)
//  5. poll pane existence up to 10s; if still present, kill again and poll 5s more
//  6. unregister from the server
func (m *Manager) Close(ctx context.Context, paneID string) {
	if paneID == "" {
		return
	}
	_ = m.mux.SendInterrupt(ctx, paneID)

	_ = m.mux.SendKeys(ctx, paneID, "\x04", false)
	time.Sleep(200 * time.Millisecond)
	_ = m.mux.SendKeys(ctx, paneID, "\x04", false)
	time.Sleep(200 * time.Millisecond)

	m.server.WaitForExited(paneID, 30*time.Second)

	_ = m.mux.KillPane(ctx, paneID)

	m.pollGoneOrKill(ctx, paneID, 10*time.Second)

	m.server.Unregister(paneID)
	if m.current == paneID {
		m.current = ""
	}
}

func (m *Manager) pollGoneOrKill(ctx context.Context, paneID string, budget time.Duration) {
	deadline := time.Now().Add(budget)
	killedAgain := false
	for {
		exists, err := m.mux.PaneExists(ctx, paneID)
		if err == nil && !exists {
			return
		}
		if !time.Now().Before(deadline) {
			if killedAgain {
				return
			}
			_ = m.mux.KillPane(ctx, paneID)
			killedAgain = true
			deadline = time.Now().Add(5 * time.Second)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// SendEnter sends the Enter key to a pane, used by the external-interactive tool's
// plan-auto-approval heuristic.
func (m *Manager) SendEnter(ctx context.Context, paneID string) error {
	return m.mux.SendKeys(ctx, paneID, "", true)
}

// CapturePaneContent returns a text snapshot of the pane.
func (m *Manager) CapturePaneContent(ctx context.Context, paneID string) (string, error) {
	return m.mux.CapturePane(ctx, paneID)
}

// ContentHash returns the MD5 digest of a pane's current content, used by shell-tool idle
// detection.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// ShellQuote single-quotes s for embedding in a shell command line, escaping any
// embedded single quotes with the '\'' idiom.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// BuildInteractiveCommand constructs the external-interactive launch command:
// cd <cwd> && ORCHESTRATOR_PORT=<port> <process> [--model M] [--dangerously-skip-permissions]
// [--allowed-tools "t1 t2 ..."] '<prompt>'.
func BuildInteractiveCommand(processName, cwd string, port int, model string, skipPermissions bool, allowedTools []string, prompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cd %s && ORCHESTRATOR_PORT=%d %s", ShellQuote(cwd), port, processName)
	if model != "" {
		fmt.Fprintf(&b, " --model %s", ShellQuote(model))
	}
	if skipPermissions {
		b.WriteString(" --dangerously-skip-permissions")
	}
	if len(allowedTools) > 0 {
		fmt.Fprintf(&b, " --allowed-tools %s", ShellQuote(strings.Join(allowedTools, " ")))
	}
	fmt.Fprintf(&b, " %s", ShellQuote(prompt))
	return b.String()
}

// BuildShellCommand constructs the shell tool's visible-mode launch command:
// cd <cwd> && <env exports> && <command>. Exports are emitted in sorted key order
// so the constructed command line is deterministic.
func BuildShellCommand(cwd, command string, env map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cd %s", ShellQuote(cwd))
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " && export %s=%s", k, ShellQuote(env[k]))
	}
	fmt.Fprintf(&b, " && %s", command)
	return b.String()
}
