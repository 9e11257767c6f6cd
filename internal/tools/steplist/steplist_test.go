package steplist

import (
	"testing"

	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/tools/builtin"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

func newTestEnv(t *testing.T) (*tools.Env, *Runner) {
	t.Helper()
	reg := tools.NewRegistry()
	builtin.Register(reg, builtin.Deps{})
	r := New(reg)
	env := &tools.Env{
		Ctx:     varctx.New(t.TempDir(), t.TempDir()),
		Display: display.Noop{},
		Run:     r,
	}
	return env, r
}

func TestRunStepsRecordsTimingForEveryCompletedStep(t *testing.T) {
	env, r := newTestEnv(t)
	steps := []workflow.Step{
		{Name: "one", Tool: "set", Var: "a", Value: "1"},
		{Name: "two", Tool: "set", Var: "b", Value: "2"},
	}
	outcome, err := r.RunSteps(steps, env)
	if err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	if len(outcome.Steps) != 2 {
		t.Fatalf("Steps = %+v, want 2 entries", outcome.Steps)
	}
	if outcome.Steps[0].Name != "one" || !outcome.Steps[0].Success {
		t.Fatalf("Steps[0] = %+v, want name=one success=true", outcome.Steps[0])
	}
	if outcome.Steps[1].Name != "two" || !outcome.Steps[1].Success {
		t.Fatalf("Steps[1] = %+v, want name=two success=true", outcome.Steps[1])
	}
}

func TestRunStepsRecordsTimingUpToAStoppingFailure(t *testing.T) {
	env, r := newTestEnv(t)
	steps := []workflow.Step{
		{Name: "ok", Tool: "set", Var: "a", Value: "1"},
		{Name: "boom", Tool: "shell", Command: "exit 1"},
		{Name: "never", Tool: "set", Var: "b", Value: "2"},
	}
	outcome, err := r.RunSteps(steps, env)
	if err == nil {
		t.Fatalf("expected an error from the failing step")
	}
	if len(outcome.Steps) != 2 {
		t.Fatalf("Steps = %+v, want exactly the 2 steps that ran", outcome.Steps)
	}
	if outcome.Steps[0].Name != "ok" || !outcome.Steps[0].Success {
		t.Fatalf("Steps[0] = %+v, want name=ok success=true", outcome.Steps[0])
	}
	if outcome.Steps[1].Name != "boom" || outcome.Steps[1].Success {
		t.Fatalf("Steps[1] = %+v, want name=boom success=false", outcome.Steps[1])
	}
}
