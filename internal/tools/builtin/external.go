package builtin

import (
	"context"
	"strings"
	"time"

	"github.com/paneflow-dev/paneflow/internal/pane"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// CompletionPollInterval is the wait-loop slice the external-interactive tool uses so
// the display can advance between polls.
const CompletionPollInterval = 500 * time.Millisecond

// AutoApproveScanChars is how much of the tail of pane content is lowercased and scanned
// for approval patterns.
const AutoApproveScanChars = 500

// approvalPatterns must have at least two matches for the tool to send Enter.
var approvalPatterns = []string{"would you like to proceed", "❯", "1. yes"}

// ExternalInteractiveTool launches a TUI process in a pane and waits for its completion
// signal. Its fields are resolved once at registration time from the running signal
// server's bound port and the workflow's claude: block; callers needing a different
// binary construct their own value with ProcessName set.
type ExternalInteractiveTool struct {
	ProcessName        string
	Port               int
	Cwd                string
	Model              string
	SkipPermissions    bool
	AllowedTools       []string
	AppendSystemPrompt string
	AutoApprovePlan    bool
}

func (t *ExternalInteractiveTool) Name() string { return "external-interactive" }

func (t *ExternalInteractiveTool) ValidateStep(step workflow.Step) error {
	if step.Prompt == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "external-interactive requires prompt"}
	}
	return nil
}

func (t *ExternalInteractiveTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	prompt, err := env.Ctx.InterpolateForClaude(step.Prompt)
	if err != nil {
		return tools.Fail(err.Error())
	}
	if t.AppendSystemPrompt != "" {
		prompt = prompt + "\n\n" + t.AppendSystemPrompt
	}
	if len(prompt) > pane.MaxPromptLength {
		return tools.Fail("prompt exceeds maximum length")
	}

	// Working directory: the step's own cwd, else the workflow config's, else the
	// project path.
	cwd := step.Cwd
	switch {
	case cwd != "":
		cwd = env.Ctx.Interpolate(cwd)
	case t.Cwd != "":
		cwd = t.Cwd
	default:
		cwd = env.ProjectDir
	}

	processName := t.ProcessName
	if processName == "" {
		processName = "claude"
	}
	command := pane.BuildInteractiveCommand(processName, cwd, t.Port, t.Model, t.SkipPermissions, t.AllowedTools, prompt)

	ctx := context.Background()
	paneID, err := env.PaneMgr.Launch(ctx, cwd, command, nil)
	if err != nil {
		return tools.Fail(err.Error())
	}

	for {
		if env.Signal.WaitForComplete(paneID, CompletionPollInterval) {
			break
		}
		if t.AutoApprovePlan {
			t.maybeAutoApprove(ctx, env, paneID)
		}
	}

	content, err := env.PaneMgr.CapturePaneContent(ctx, paneID)
	if err != nil {
		content = ""
	}
	env.PaneMgr.Close(ctx, paneID)

	return tools.Ok(content)
}

func (t *ExternalInteractiveTool) maybeAutoApprove(ctx context.Context, env *tools.Env, paneID string) {
	content, err := env.PaneMgr.CapturePaneContent(ctx, paneID)
	if err != nil {
		return
	}
	if len(content) > AutoApproveScanChars {
		content = content[len(content)-AutoApproveScanChars:]
	}
	lower := strings.ToLower(content)
	matches := 0
	for _, p := range approvalPatterns {
		if strings.Contains(lower, p) {
			matches++
		}
	}
	if matches >= 2 {
		_ = env.PaneMgr.SendEnter(ctx, paneID)
		time.Sleep(300 * time.Millisecond)
	}
}
