package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// ForeachTool iterates a JSON array variable, binding each element to item_var.
type ForeachTool struct{}

func (t *ForeachTool) Name() string { return "foreach" }

func (t *ForeachTool) ValidateStep(step workflow.Step) error {
	if step.Source == "" || step.ItemVar == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "foreach requires source and item_var"}
	}
	return nil
}

func (t *ForeachTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	v, ok := env.Ctx.Get(step.Source)
	if !ok {
		return tools.Fail(fmt.Sprintf("foreach: source variable %q is not set", step.Source))
	}
	items, err := asArray(v)
	if err != nil {
		return tools.Fail(fmt.Sprintf("foreach: %v", err))
	}
	if len(items) == 0 {
		return tools.Ok("Empty array, no iterations performed")
	}

	onItemError := step.OnItemError
	if onItemError == "" {
		onItemError = "stop"
	}

	prevItem, hadItem := env.Ctx.Get(step.ItemVar)
	var prevIndex varctx.Value
	var hadIndex bool
	if step.IndexVar != "" {
		prevIndex, hadIndex = env.Ctx.Get(step.IndexVar)
	}
	defer restoreVar(env.Ctx, step.ItemVar, prevItem, hadItem)
	if step.IndexVar != "" {
		defer restoreVar(env.Ctx, step.IndexVar, prevIndex, hadIndex)
	}

	env.Display.Emit(display.Event{Kind: display.EventLoopEnter, StepName: step.Name, Message: fmt.Sprintf("foreach %s (%d items)", step.Source, len(items)), IndentLvl: env.IndentLvl})
	defer env.Display.Emit(display.Event{Kind: display.EventLoopExit, StepName: step.Name, IndentLvl: env.IndentLvl})

	nested := childEnv(env)
	for idx, item := range items {
		env.Ctx.Set(step.ItemVar, itemToValue(item))
		if step.IndexVar != "" {
			env.Ctx.Set(step.IndexVar, varctx.Value{Kind: varctx.KindNumber, Num: float64(idx)})
		}

		outcome, err := env.Run.RunSteps(step.Steps, nested)
		if err != nil {
			switch onItemError {
			case "stop":
				return tools.Fail(fmt.Sprintf("foreach item %d: %v", idx, err))
			case "stop_loop":
				return tools.OkNoOutput()
			case "continue":
				continue
			}
		}
		if outcome.Signal == tools.LoopBreak {
			break
		}
		// LoopContinue at this level just proceeds to the next item naturally.
	}
	return tools.OkNoOutput()
}

func restoreVar(ctx *varctx.Context, name string, prev varctx.Value, had bool) {
	if name == "" {
		return
	}
	if had {
		ctx.Set(name, prev)
	} else {
		ctx.Delete(name)
	}
}

func childEnv(env *tools.Env) *tools.Env {
	child := *env
	child.IndentLvl = env.IndentLvl + 1
	return &child
}

func asArray(v varctx.Value) ([]interface{}, error) {
	switch v.Kind {
	case varctx.KindArray:
		return v.Array, nil
	case varctx.KindString:
		var arr []interface{}
		if err := json.Unmarshal([]byte(v.Str), &arr); err != nil {
			return nil, fmt.Errorf("source is not a JSON array: %w", err)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("source must be an array")
	}
}

// itemToValue stores objects/arrays as their JSON serialization and scalars as strings.
func itemToValue(item interface{}) varctx.Value {
	switch item.(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(item)
		if err != nil {
			return varctx.StringValue("")
		}
		return varctx.StringValue(string(b))
	default:
		return varctx.FromAny(item)
	}
}
