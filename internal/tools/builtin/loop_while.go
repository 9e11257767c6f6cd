package builtin

import (
	"fmt"

	"github.com/paneflow-dev/paneflow/internal/condeval"
	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// WhileTool re-evaluates condition before each iteration, bounded by max_iterations.
type WhileTool struct{}

func (t *WhileTool) Name() string { return "while" }

func (t *WhileTool) ValidateStep(step workflow.Step) error {
	if step.Condition == "" || step.MaxIterations <= 0 {
		return &tools.ValidationError{Step: step.Name, Msg: "while requires condition and a positive max_iterations"}
	}
	return nil
}

func (t *WhileTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	onMaxReached := step.OnMaxReached
	if onMaxReached == "" {
		onMaxReached = "error"
	}

	prevIter, hadIter := env.Ctx.Get("_iteration")
	defer restoreVar(env.Ctx, "_iteration", prevIter, hadIter)

	env.Display.Emit(display.Event{Kind: display.EventLoopEnter, StepName: step.Name, Message: "while " + step.Condition, IndentLvl: env.IndentLvl})
	defer env.Display.Emit(display.Event{Kind: display.EventLoopExit, StepName: step.Name, IndentLvl: env.IndentLvl})

	nested := childEnv(env)
	iteration := 0
	for iteration < step.MaxIterations {
		res, err := condeval.Evaluate(env.Ctx, step.Condition)
		if err != nil {
			return tools.Fail(fmt.Sprintf("while: %v", err))
		}
		if !res.Satisfied {
			return tools.OkNoOutput()
		}

		env.Ctx.Set("_iteration", varctx.Value{Kind: varctx.KindNumber, Num: float64(iteration)})

		outcome, err := env.Run.RunSteps(step.Steps, nested)
		if err != nil {
			return tools.Fail(fmt.Sprintf("while iteration %d: %v", iteration, err))
		}
		if outcome.Signal == tools.LoopBreak {
			return tools.OkNoOutput()
		}
		iteration++
	}

	if onMaxReached == "error" {
		return tools.Fail(fmt.Sprintf("while: max_iterations (%d) reached with condition still satisfied", step.MaxIterations))
	}
	return tools.OkNoOutput()
}
