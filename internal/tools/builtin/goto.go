package builtin

import (
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// GotoTool returns the interpolated target as the next step to jump to.
type GotoTool struct{}

func (t *GotoTool) Name() string { return "goto" }

func (t *GotoTool) ValidateStep(step workflow.Step) error {
	if step.Target == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "goto requires target"}
	}
	return nil
}

func (t *GotoTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	target := env.Ctx.Interpolate(step.Target)
	return tools.Result{Success: true, GotoStep: target}
}
