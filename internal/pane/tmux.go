package pane

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// TmuxMultiplexer is the production Multiplexer backend: real tmux-CLI wrapping, with
// pane ids in tmux's native "%12" form.
type TmuxMultiplexer struct {
	Session string
}

// NewTmuxMultiplexer returns a multiplexer bound to the given tmux session name.
func NewTmuxMultiplexer(session string) *TmuxMultiplexer {
	return &TmuxMultiplexer{Session: session}
}

// InTmux reports whether the process is running inside an active tmux session.
func InTmux() bool {
	return os.Getenv("TMUX") != ""
}

func (t *TmuxMultiplexer) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// SplitPane runs: tmux split-window -t <session> -c <cwd> [-e K=V ...] -P -F '#{pane_id}'
// [command], then selects a tiled layout. An empty command leaves the pane running its
// default shell, letting the caller send the real command later.
func (t *TmuxMultiplexer) SplitPane(ctx context.Context, cwd, command string, env map[string]string) (string, error) {
	args := []string{"split-window", "-t", t.Session, "-c", cwd}
	for k, v := range env {
		args = append(args, "-e", k+"="+v)
	}
	args = append(args, "-P", "-F", "#{pane_id}")
	if command != "" {
		args = append(args, command)
	}
	out, err := t.run(ctx, args...)
	if err != nil {
		return "", err
	}
	paneID := strings.TrimSpace(out)
	_, _ = t.run(ctx, "select-layout", "-t", t.Session, "tiled")
	return paneID, nil
}

// SendKeys sends literal text to a pane, chunking payloads over 4096 bytes. Control
// characters like "\x04" (Ctrl-D) are sent literally via -l.
func (t *TmuxMultiplexer) SendKeys(ctx context.Context, paneID, text string, enter bool) error {
	const chunkSize = 4096
	for len(text) > 0 {
		n := len(text)
		if n > chunkSize {
			n = chunkSize
		}
		chunk, rest := text[:n], text[n:]
		if _, err := t.run(ctx, "send-keys", "-t", paneID, "-l", "--", chunk); err != nil {
			return err
		}
		text = rest
	}
	if enter {
		if _, err := t.run(ctx, "send-keys", "-t", paneID, "C-m"); err != nil {
			return err
		}
	}
	return nil
}

// SendInterrupt sends Ctrl-C.
func (t *TmuxMultiplexer) SendInterrupt(ctx context.Context, paneID string) error {
	_, err := t.run(ctx, "send-keys", "-t", paneID, "C-c")
	return err
}

// KillPane kills a pane; errors are expected (and swallowed by the caller) once the
// pane is already gone.
func (t *TmuxMultiplexer) KillPane(ctx context.Context, paneID string) error {
	_, err := t.run(ctx, "kill-pane", "-t", paneID)
	return err
}

// PaneExists lists panes in the session and checks membership.
func (t *TmuxMultiplexer) PaneExists(ctx context.Context, paneID string) (bool, error) {
	out, err := t.run(ctx, "list-panes", "-t", t.Session, "-F", "#{pane_id}")
	if err != nil {
		// "no server running" / similar are treated as "no panes", not an error.
		return false, nil
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == paneID {
			return true, nil
		}
	}
	return false, nil
}

// CapturePane returns a scrollback snapshot via tmux capture-pane -p.
func (t *TmuxMultiplexer) CapturePane(ctx context.Context, paneID string) (string, error) {
	return t.run(ctx, "capture-pane", "-t", paneID, "-p", "-S", "-2000")
}

// IsInstalled reports whether the tmux binary is reachable on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// EnsureSession creates the session if it does not already exist.
func (t *TmuxMultiplexer) EnsureSession(ctx context.Context, cwd string) error {
	_, err := t.run(ctx, "has-session", "-t", t.Session)
	if err == nil {
		return nil
	}
	_, err = t.run(ctx, "new-session", "-d", "-s", t.Session, "-c", cwd)
	return err
}
