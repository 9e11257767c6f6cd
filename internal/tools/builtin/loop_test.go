package builtin

import (
	"testing"

	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/tools/steplist"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// newLoopEnv builds a tool environment wired only with the pane-free builtin tools the
// loop tests need (set, goto, while, retry, range, foreach), avoiding any real tmux or
// signal-server dependency.
func newLoopEnv(t *testing.T) (*tools.Env, *steplist.Runner) {
	t.Helper()
	tempDir := t.TempDir()
	ctx := varctx.New(t.TempDir(), tempDir)

	reg := tools.NewRegistry()
	reg.Add(&SetTool{})
	reg.Add(&GotoTool{})
	reg.Add(&ForeachTool{})
	reg.Add(&WhileTool{})
	reg.Add(&RetryTool{})
	reg.Add(&RangeTool{})

	runner := steplist.New(reg)
	env := &tools.Env{Ctx: ctx, Display: display.Noop{}, Run: runner}
	return env, runner
}

func TestWhileLoopStopsWhenConditionFalse(t *testing.T) {
	env, runner := newLoopEnv(t)
	env.Ctx.SetString("n", "0")
	steps := []workflow.Step{
		{
			Name: "count-up",
			Tool: "while",
			LoopConfig: workflow.LoopConfig{
				Condition:     `{n} < 3`,
				MaxIterations: 10,
				Steps: []workflow.Step{
					{Name: "inc", Tool: "set", Var: "n", Expr: "{n} + 1"},
				},
			},
		},
	}
	if _, err := runner.RunSteps(steps, env); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if got := env.Ctx.GetString("n"); got != "3" {
		t.Fatalf("n = %q, want %q", got, "3")
	}
	if _, ok := env.Ctx.Get("_iteration"); ok {
		t.Fatalf("_iteration should be restored to its prior (unset) value after the loop")
	}
}

func TestWhileLoopOnMaxReachedError(t *testing.T) {
	env, runner := newLoopEnv(t)
	env.Ctx.SetString("n", "0")
	steps := []workflow.Step{
		{
			Name: "forever",
			Tool: "while",
			LoopConfig: workflow.LoopConfig{
				Condition:     "true",
				MaxIterations: 3,
				OnMaxReached:  "error",
				Steps:         []workflow.Step{},
			},
		},
	}
	if _, err := runner.RunSteps(steps, env); err == nil {
		t.Fatalf("expected an error when max_iterations is reached with on_max_reached=error")
	}
}

func TestWhileLoopOnMaxReachedContinue(t *testing.T) {
	env, runner := newLoopEnv(t)
	steps := []workflow.Step{
		{
			Name: "forever",
			Tool: "while",
			LoopConfig: workflow.LoopConfig{
				Condition:     "true",
				MaxIterations: 3,
				OnMaxReached:  "continue",
				Steps:         []workflow.Step{},
			},
		},
	}
	if _, err := runner.RunSteps(steps, env); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
}

func TestRetrySucceedsImmediatelyWithoutUntil(t *testing.T) {
	env, runner := newLoopEnv(t)
	steps := []workflow.Step{
		{
			Name: "retry-step",
			Tool: "retry",
			LoopConfig: workflow.LoopConfig{
				MaxAttempts: 3,
				Steps: []workflow.Step{
					{Name: "noop", Tool: "set", Var: "touched", Value: "yes"},
				},
			},
		},
	}
	if _, err := runner.RunSteps(steps, env); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if got := env.Ctx.GetString("_retry_attempts"); got != "1" {
		t.Fatalf("_retry_attempts = %q, want %q", got, "1")
	}
	if got := env.Ctx.GetString("_retry_succeeded"); got != "true" {
		t.Fatalf("_retry_succeeded = %q, want %q", got, "true")
	}
}

func TestRetryExhaustsAttemptsOnFailurePolicyError(t *testing.T) {
	env, runner := newLoopEnv(t)
	steps := []workflow.Step{
		{
			Name: "retry-step",
			Tool: "retry",
			LoopConfig: workflow.LoopConfig{
				MaxAttempts: 2,
				Until:       "false",
				Steps: []workflow.Step{
					{Name: "noop", Tool: "set", Var: "x", Value: "1"},
				},
			},
		},
	}
	if _, err := runner.RunSteps(steps, env); err == nil {
		t.Fatalf("expected an error: on_failure defaults to error and until never passes")
	}
	if got := env.Ctx.GetString("_retry_attempts"); got != "2" {
		t.Fatalf("_retry_attempts = %q, want %q", got, "2")
	}
	if got := env.Ctx.GetString("_retry_succeeded"); got != "false" {
		t.Fatalf("_retry_succeeded = %q, want %q", got, "false")
	}
}

func TestRetryOnFailureContinue(t *testing.T) {
	env, runner := newLoopEnv(t)
	steps := []workflow.Step{
		{
			Name: "retry-step",
			Tool: "retry",
			LoopConfig: workflow.LoopConfig{
				MaxAttempts: 2,
				Until:       "false",
				OnFailure:   "continue",
			},
		},
	}
	if _, err := runner.RunSteps(steps, env); err != nil {
		t.Fatalf("RunSteps should succeed with on_failure=continue: %v", err)
	}
}

func TestRangeLoopPositiveStep(t *testing.T) {
	env, runner := newLoopEnv(t)
	steps := []workflow.Step{
		{
			Name: "count",
			Tool: "range",
			Var:  "i",
			LoopConfig: workflow.LoopConfig{
				From: 0, To: 4, Step: 2,
				Steps: []workflow.Step{
					{Name: "accumulate", Tool: "set", Var: "last", Expr: "i"},
				},
			},
		},
	}
	if _, err := runner.RunSteps(steps, env); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if got := env.Ctx.GetString("last"); got != "4" {
		t.Fatalf("last = %q, want %q", got, "4")
	}
	if _, ok := env.Ctx.Get("i"); ok {
		t.Fatalf("range var should be restored after the loop")
	}
}

func TestRangeLoopNegativeStep(t *testing.T) {
	env, runner := newLoopEnv(t)
	steps := []workflow.Step{
		{
			Name: "countdown",
			Tool: "range",
			Var:  "i",
			LoopConfig: workflow.LoopConfig{
				From: 5, To: 1, Step: -2,
				Steps: []workflow.Step{
					{Name: "accumulate", Tool: "set", Var: "last", Expr: "i"},
				},
			},
		},
	}
	if _, err := runner.RunSteps(steps, env); err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	// 5, 3, 1 — last retained value is 1.
	if got := env.Ctx.GetString("last"); got != "1" {
		t.Fatalf("last = %q, want %q", got, "1")
	}
}

func TestRangeValidateStepRejectsZeroStep(t *testing.T) {
	tool := &RangeTool{}
	step := workflow.Step{Name: "bad", Tool: "range", Var: "i", LoopConfig: workflow.LoopConfig{From: 0, To: 1, Step: 0}}
	if err := tool.ValidateStep(step); err == nil {
		t.Fatalf("expected a validation error for a zero step")
	}
}
