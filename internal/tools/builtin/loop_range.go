package builtin

import (
	"fmt"

	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// RangeTool is the numeric loop from "from" to "to" inclusive. A nested failure always
// stops the workflow; there is no continue policy for this tool.
type RangeTool struct{}

func (t *RangeTool) Name() string { return "range" }

func (t *RangeTool) ValidateStep(step workflow.Step) error {
	if step.Var == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "range requires var"}
	}
	if step.Step == 0 {
		return &tools.ValidationError{Step: step.Name, Msg: "range requires a nonzero step"}
	}
	return nil
}

func (t *RangeTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	prevVar, hadVar := env.Ctx.Get(step.Var)
	prevIter, hadIter := env.Ctx.Get("_iteration")
	defer restoreVar(env.Ctx, step.Var, prevVar, hadVar)
	defer restoreVar(env.Ctx, "_iteration", prevIter, hadIter)

	env.Display.Emit(display.Event{Kind: display.EventLoopEnter, StepName: step.Name, Message: fmt.Sprintf("range %d..%d step %d", step.From, step.To, step.Step), IndentLvl: env.IndentLvl})
	defer env.Display.Emit(display.Event{Kind: display.EventLoopExit, StepName: step.Name, IndentLvl: env.IndentLvl})

	nested := childEnv(env)
	idx := 0
	for cur := step.From; inRange(cur, step.From, step.To, step.Step); cur += step.Step {
		env.Ctx.Set(step.Var, varctx.Value{Kind: varctx.KindNumber, Num: float64(cur)})
		env.Ctx.Set("_iteration", varctx.Value{Kind: varctx.KindNumber, Num: float64(idx)})

		outcome, err := env.Run.RunSteps(step.Steps, nested)
		if err != nil {
			return tools.Fail(fmt.Sprintf("range iteration %d (value %d): %v", idx, cur, err))
		}
		if outcome.Signal == tools.LoopBreak {
			break
		}
		idx++
	}
	return tools.OkNoOutput()
}

func inRange(cur, from, to, step int) bool {
	if step > 0 {
		return cur <= to
	}
	return cur >= to
}
