package builtin

import (
	"fmt"
	"time"

	"github.com/paneflow-dev/paneflow/internal/condeval"
	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// RetryTool re-runs its nested steps until an until condition passes (or, absent one,
// a run succeeds), bounded by max_attempts.
//
// _retry_attempts is set to the 1-indexed attempt number on which the loop stopped,
// whether by success or by exhausting max_attempts.
type RetryTool struct{}

func (t *RetryTool) Name() string { return "retry" }

func (t *RetryTool) ValidateStep(step workflow.Step) error {
	if step.MaxAttempts <= 0 {
		return &tools.ValidationError{Step: step.Name, Msg: "retry requires a positive max_attempts"}
	}
	return nil
}

func (t *RetryTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	onFailure := step.OnFailure
	if onFailure == "" {
		onFailure = "error"
	}

	// _attempt is a scratch iteration variable like while's _iteration and is restored on
	// exit; _retry_succeeded/_retry_attempts are this tool's declared outputs and must
	// survive past Execute returning, so only _attempt gets a restore.
	prevAttempt, hadAttempt := env.Ctx.Get("_attempt")
	defer restoreVar(env.Ctx, "_attempt", prevAttempt, hadAttempt)

	env.Display.Emit(display.Event{Kind: display.EventLoopEnter, StepName: step.Name, Message: fmt.Sprintf("retry (up to %d attempts)", step.MaxAttempts), IndentLvl: env.IndentLvl})
	defer env.Display.Emit(display.Event{Kind: display.EventLoopExit, StepName: step.Name, IndentLvl: env.IndentLvl})

	nested := childEnv(env)
	succeeded := false
	attempt := 0
	for attempt < step.MaxAttempts {
		attempt++
		env.Ctx.Set("_attempt", varctx.Value{Kind: varctx.KindNumber, Num: float64(attempt)})

		_, runErr := env.Run.RunSteps(step.Steps, nested)

		if step.Until != "" {
			res, err := condeval.Evaluate(env.Ctx, step.Until)
			if err != nil {
				return tools.Fail(fmt.Sprintf("retry: %v", err))
			}
			if res.Satisfied {
				succeeded = true
				break
			}
		} else if runErr == nil {
			succeeded = true
			break
		}

		if attempt < step.MaxAttempts && step.Delay.Duration > 0 {
			time.Sleep(step.Delay.Duration)
		}
	}

	env.Ctx.Set("_retry_succeeded", varctx.Value{Kind: varctx.KindBool, Bool: succeeded})
	env.Ctx.Set("_retry_attempts", varctx.Value{Kind: varctx.KindNumber, Num: float64(attempt)})

	if succeeded {
		return tools.OkNoOutput()
	}
	if onFailure == "continue" {
		return tools.OkNoOutput()
	}
	return tools.Fail(fmt.Sprintf("retry: all %d attempts failed", step.MaxAttempts))
}
