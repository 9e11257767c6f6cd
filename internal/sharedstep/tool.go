package sharedstep

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// Tool implements the uses:/with:/outputs: escape hatch. It is registered
// separately from internal/tools/builtin (see that package's doc comment) because it
// depends on tools.Runner to execute a resolved definition's nested steps.
type Tool struct {
	Resolver *Resolver
	MaxDepth int

	// stack tracks in-flight identifiers. Step execution is single-threaded, so
	// this needs no locking: a push is always paired with a deferred pop within one
	// synchronous call tree.
	stack []string
}

// New constructs a shared-step tool bound to a resolver, with the default max depth.
func New(resolver *Resolver) *Tool {
	return &Tool{Resolver: resolver, MaxDepth: DefaultMaxDepth}
}

func (t *Tool) Name() string { return "uses" }

func (t *Tool) ValidateStep(step workflow.Step) error {
	if step.Uses == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "uses requires a uses: reference"}
	}
	return nil
}

func (t *Tool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	ref := env.Ctx.Interpolate(step.Uses)
	def, err := t.Resolver.Resolve(ref, env.WorkflowDir)
	if err != nil {
		return tools.Fail(err.Error())
	}

	for _, id := range t.stack {
		if id == def.Identifier {
			return tools.Fail((&CircularDependencyError{Identifier: def.Identifier, Stack: append([]string{}, t.stack...)}).Error())
		}
	}
	maxDepth := t.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if len(t.stack)+1 > maxDepth {
		return tools.Fail((&MaxDepthError{MaxDepth: maxDepth}).Error())
	}

	childCtx, err := t.buildChildContext(step, env, def)
	if err != nil {
		return tools.Fail(err.Error())
	}

	t.stack = append(t.stack, def.Identifier)
	defer func() { t.stack = t.stack[:len(t.stack)-1] }()

	childEnv := *env
	childEnv.Ctx = childCtx
	childEnv.IndentLvl = env.IndentLvl + 1

	if _, runErr := env.Run.RunSteps(def.Steps, &childEnv); runErr != nil {
		return tools.Fail(fmt.Sprintf("shared step %q: %v", def.Identifier, runErr))
	}

	t.mapOutputs(def, step, childCtx, env.Ctx)
	return tools.OkNoOutput()
}

// buildChildContext interpolates the caller's with: map through the parent context,
// applies input defaults, rejects missing required inputs, and builds an isolated context
// containing exactly the inputs, both flat ("name") and nested under "inputs.name".
func (t *Tool) buildChildContext(step workflow.Step, env *tools.Env, def *workflow.SharedStep) (*varctx.Context, error) {
	resolved := make(map[string]interface{}, len(def.Inputs))

	for _, in := range def.Inputs {
		raw, supplied := step.With[in.Name]
		switch {
		case supplied:
			resolved[in.Name] = env.Ctx.Interpolate(raw)
		case in.Default != nil:
			resolved[in.Name] = in.Default
		case in.Required:
			return nil, &InputError{Identifier: def.Identifier, Input: in.Name, Msg: "required input not supplied"}
		default:
			resolved[in.Name] = ""
		}
		if in.Schema != nil {
			if err := checkSchema(in.Schema, resolved[in.Name]); err != nil {
				return nil, &InputError{Identifier: def.Identifier, Input: in.Name, Msg: err.Error()}
			}
		}
	}

	child := varctx.New(env.Ctx.ProjectDir, env.Ctx.TempDir)
	child.ExternalizeThreshold = env.Ctx.ExternalizeThreshold
	inputsObj := make(map[string]interface{}, len(resolved))
	for name, v := range resolved {
		child.Set(name, varctx.FromAny(v))
		inputsObj[name] = v
	}
	child.Set("inputs", varctx.FromAny(inputsObj))
	return child, nil
}

func (t *Tool) mapOutputs(def *workflow.SharedStep, step workflow.Step, childCtx *varctx.Context, parentCtx *varctx.Context) {
	for _, out := range def.Outputs {
		callerVar := out.Name
		if override, ok := step.Outputs[out.Name]; ok && override != "" {
			callerVar = override
		}
		if v, ok := childCtx.Get(out.FromVar); ok {
			parentCtx.Set(callerVar, v)
		}
	}
}

// checkSchema does a minimal type-only check. A full JSON-schema validator is
// deliberately not wired; only a declared "type" field is enforced.
func checkSchema(schema interface{}, value interface{}) error {
	m, ok := schema.(map[string]interface{})
	if !ok {
		return nil
	}
	wantType, ok := m["type"].(string)
	if !ok {
		return nil
	}
	switch wantType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number", "integer":
		switch value.(type) {
		case float64, int:
		case string:
			if _, err := strconv.ParseFloat(value.(string), 64); err != nil {
				return fmt.Errorf("expected number, got %q", value)
			}
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case "boolean":
		switch v := value.(type) {
		case bool:
		case string:
			if v != "true" && v != "false" {
				return fmt.Errorf("expected boolean, got %q", v)
			}
		default:
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "array":
		if !strings.HasPrefix(fmt.Sprintf("%T", value), "[]") {
			return fmt.Errorf("expected array, got %T", value)
		}
	}
	return nil
}
