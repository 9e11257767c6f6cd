// Package steplist implements the generic step-list execution loop. It is used both by
// the top-level workflow runner
// (internal/runner) and by the loop tools (foreach/while/retry/range) and the shared-step
// tool to execute their nested "steps" lists, so the labeled-goto/when/on_error machinery
// is written exactly once.
package steplist

import (
	"fmt"
	"time"

	"github.com/paneflow-dev/paneflow/internal/condeval"
	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// StepError marks a tool reporting success=false with on_error=stop.
type StepError struct {
	StepName string
	Message  string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %s", e.StepName, e.Message)
}

// GotoError marks a goto target that does not exist in the current step list.
type GotoError struct {
	Target string
}

func (e *GotoError) Error() string {
	return fmt.Sprintf("goto target %q not found", e.Target)
}

// Runner executes step lists against a fixed tool registry. It implements tools.Runner so
// it can be installed as Env.Run, letting nested tool invocations recurse back into it.
type Runner struct {
	Registry *tools.Registry
}

// New constructs a Runner bound to a tool registry.
func New(registry *tools.Registry) *Runner {
	return &Runner{Registry: registry}
}

// RunSteps builds a name-to-index map, walks the list honoring when/goto/on_error,
// writes output_var, and propagates loop signals.
func (r *Runner) RunSteps(steps []workflow.Step, env *tools.Env) (tools.Outcome, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		index[s.Name] = i
	}

	var timings []tools.StepTiming

	i := 0
	for i < len(steps) {
		step := steps[i]

		if step.When != "" {
			res, err := condeval.Evaluate(env.Ctx, step.When)
			if err != nil {
				return tools.Outcome{Steps: timings}, err
			}
			if !res.Satisfied {
				env.Display.Emit(display.Event{Kind: display.EventStepSkipped, StepName: step.Name, Message: res.Reason, IndentLvl: env.IndentLvl})
				i++
				continue
			}
		}

		t, ok := r.Registry.Get(step.Tool)
		if !ok {
			return tools.Outcome{Steps: timings}, &tools.ValidationError{Step: step.Name, Msg: fmt.Sprintf("unknown tool %q", step.Tool)}
		}
		if err := t.ValidateStep(step); err != nil {
			return tools.Outcome{Steps: timings}, err
		}

		env.Display.Emit(display.Event{Kind: display.EventStepStart, StepName: step.Name, IndentLvl: env.IndentLvl})
		stepStart := time.Now()
		result := t.Execute(step, env)
		timings = append(timings, tools.StepTiming{Name: step.Name, Duration: time.Since(stepStart), Success: result.Success})

		if result.HasOutput && step.OutputVar != "" {
			env.Ctx.SetString(step.OutputVar, result.Output)
		}

		if !result.Success {
			env.Display.Emit(display.Event{Kind: display.EventStepFailed, StepName: step.Name, Message: result.Error, IndentLvl: env.IndentLvl})
			if step.OnError == workflow.OnErrorStop || step.OnError == "" {
				return tools.Outcome{Steps: timings}, &StepError{StepName: step.Name, Message: result.Error}
			}
			// on_error == continue: fall through.
		} else {
			env.Display.Emit(display.Event{Kind: display.EventStepSucceeded, StepName: step.Name, IndentLvl: env.IndentLvl})
		}

		if result.LoopSignal != tools.LoopNone {
			return tools.Outcome{Signal: result.LoopSignal, Steps: timings}, nil
		}

		if result.GotoStep != "" {
			target, ok := index[result.GotoStep]
			if !ok {
				return tools.Outcome{Steps: timings}, &GotoError{Target: result.GotoStep}
			}
			i = target
		} else {
			i++
		}
	}
	return tools.Outcome{Steps: timings}, nil
}
