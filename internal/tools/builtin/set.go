package builtin

import (
	"fmt"

	"github.com/paneflow-dev/paneflow/internal/exprlang"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// SetTool stores var from exactly one of value (interpolated) or expr (evaluated).
type SetTool struct{}

func (t *SetTool) Name() string { return "set" }

func (t *SetTool) ValidateStep(step workflow.Step) error {
	if step.Var == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "set requires var"}
	}
	hasValue := step.Value != ""
	hasExpr := step.Expr != ""
	if hasValue == hasExpr {
		return &tools.ValidationError{Step: step.Name, Msg: "set requires exactly one of value or expr"}
	}
	return nil
}

func (t *SetTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	if step.Expr != "" {
		s, err := exprlang.EvaluateString(env.Ctx, step.Expr)
		if err != nil {
			return tools.Fail(fmt.Sprintf("evaluating expr: %v", err))
		}
		env.Ctx.SetString(step.Var, s)
		return tools.Ok(s)
	}
	s := env.Ctx.Interpolate(step.Value)
	env.Ctx.SetString(step.Var, s)
	return tools.Ok(s)
}
