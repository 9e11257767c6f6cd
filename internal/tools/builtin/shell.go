package builtin

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/paneflow-dev/paneflow/internal/pane"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// InvisibleShellTimeout is the default subprocess timeout for invisible-mode shell
// steps.
const InvisibleShellTimeout = 10 * time.Minute

// IdlePollInterval and IdleThreshold implement visible-mode idle detection: every
// IdlePollInterval compute the pane's content hash; if unchanged for IdleThreshold,
// consider the command finished.
const (
	IdlePollInterval = 2 * time.Second
	IdleThreshold    = 10 * time.Second
)

// ShellTool runs a command either invisibly (captured subprocess) or visibly (in a pane
// with idle detection).
type ShellTool struct{}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) ValidateStep(step workflow.Step) error {
	if step.Command == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "shell requires command"}
	}
	return nil
}

func (t *ShellTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	command := env.Ctx.Interpolate(step.Command)
	cwd := step.Cwd
	if cwd != "" {
		cwd = env.Ctx.Interpolate(cwd)
	} else {
		cwd = env.ProjectDir
	}
	interpEnv := make(map[string]string, len(step.Env))
	for k, v := range step.Env {
		interpEnv[k] = env.Ctx.Interpolate(v)
	}

	if step.Visible {
		return t.executeVisible(step, env, cwd, command, interpEnv)
	}
	return t.executeInvisible(cwd, command, interpEnv)
}

func (t *ShellTool) executeInvisible(cwd, command string, extraEnv map[string]string) tools.Result {
	ctx, cancel := context.WithTimeout(context.Background(), InvisibleShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	setProcessGroup(cmd)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	for k, v := range extraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		output = output + "\n[STDERR]\n" + stderr.String()
	}
	output = strings.TrimRight(output, " \t\n\r")

	if err != nil {
		return tools.Result{Success: false, Output: output, HasOutput: true, Error: err.Error()}
	}
	return tools.Ok(output)
}

func (t *ShellTool) executeVisible(step workflow.Step, env *tools.Env, cwd, command string, extraEnv map[string]string) tools.Result {
	ctx := context.Background()
	fullCommand := pane.BuildShellCommand(cwd, command, extraEnv)

	paneID, err := env.PaneMgr.Launch(ctx, cwd, fullCommand, extraEnv)
	if err != nil {
		return tools.Fail(err.Error())
	}
	defer env.PaneMgr.Close(ctx, paneID)

	lastHash := ""
	stableSince := time.Now()
	for {
		time.Sleep(IdlePollInterval)
		content, err := env.PaneMgr.CapturePaneContent(ctx, paneID)
		if err != nil {
			break
		}
		hash := pane.ContentHash(content)
		if hash != lastHash {
			lastHash = hash
			stableSince = time.Now()
			continue
		}
		if time.Since(stableSince) >= IdleThreshold {
			break
		}
	}

	content, err := env.PaneMgr.CapturePaneContent(ctx, paneID)
	if err != nil {
		content = ""
	}
	// Visible mode always reports success true: no exit code is available.
	return tools.Ok(content)
}
