package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

func newJSONEnv(t *testing.T) *tools.Env {
	t.Helper()
	return &tools.Env{Ctx: varctx.New(t.TempDir(), t.TempDir())}
}

func TestJSONQueryOverSourceVar(t *testing.T) {
	env := newJSONEnv(t)
	env.Ctx.SetString("doc", `{"name":"claude","tags":["a","b"]}`)

	tool := &JSONYAMLTool{}
	step := workflow.Step{Name: "q", Tool: "json", Action: "query", LoopConfig: workflow.LoopConfig{Source: "doc"}, Query: "name"}
	if err := tool.ValidateStep(step); err != nil {
		t.Fatalf("ValidateStep: %v", err)
	}
	res := tool.Execute(step, env)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if res.Output != "claude" {
		t.Fatalf("Output = %q, want %q", res.Output, "claude")
	}
}

func TestJSONQueryRootIsIdentity(t *testing.T) {
	env := newJSONEnv(t)
	original := `{"a":1,"b":2}`
	env.Ctx.SetString("doc", original)

	tool := &JSONYAMLTool{}
	step := workflow.Step{Name: "q", Tool: "json", Action: "query", LoopConfig: workflow.LoopConfig{Source: "doc"}, Query: "@"}
	res := tool.Execute(step, env)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Error)
	}
	if res.Output != `{"a":1,"b":2}` {
		t.Fatalf("Output = %q, want round-trip of %q", res.Output, original)
	}
}

func TestJSONSetThenQueryRoundTrip(t *testing.T) {
	env := newJSONEnv(t)
	env.Ctx.SetString("doc", `{"a":{"b":1}}`)
	tool := &JSONYAMLTool{}

	setStep := workflow.Step{Name: "s", Tool: "json", Action: "set", LoopConfig: workflow.LoopConfig{Source: "doc"}, Path: "a.b", Value: "42"}
	if res := tool.Execute(setStep, env); !res.Success {
		t.Fatalf("set failed: %s", res.Error)
	}

	queryStep := workflow.Step{Name: "q", Tool: "json", Action: "query", LoopConfig: workflow.LoopConfig{Source: "doc"}, Query: "a.b"}
	res := tool.Execute(queryStep, env)
	if !res.Success {
		t.Fatalf("query failed: %s", res.Error)
	}
	if res.Output != "42" {
		t.Fatalf("Output = %q, want %q", res.Output, "42")
	}
}

func TestJSONDelete(t *testing.T) {
	env := newJSONEnv(t)
	env.Ctx.SetString("doc", `{"a":1,"b":2}`)
	tool := &JSONYAMLTool{}

	delStep := workflow.Step{Name: "d", Tool: "json", Action: "delete", LoopConfig: workflow.LoopConfig{Source: "doc"}, Path: "a"}
	if res := tool.Execute(delStep, env); !res.Success {
		t.Fatalf("delete failed: %s", res.Error)
	}

	res := tool.Execute(workflow.Step{Name: "q", Tool: "json", Action: "query", LoopConfig: workflow.LoopConfig{Source: "doc"}, Query: "@"}, env)
	if res.Output != `{"b":2}` {
		t.Fatalf("Output = %q, want %q", res.Output, `{"b":2}`)
	}
}

func TestJSONUpdateAppendAndIncrement(t *testing.T) {
	env := newJSONEnv(t)
	env.Ctx.SetString("doc", `{"items":["x"],"count":1}`)
	tool := &JSONYAMLTool{}

	appendStep := workflow.Step{Name: "app", Tool: "json", Action: "update", LoopConfig: workflow.LoopConfig{Source: "doc"}, Path: "items", UpdateOp: "append", Value: `"y"`}
	if res := tool.Execute(appendStep, env); !res.Success {
		t.Fatalf("append failed: %s", res.Error)
	}
	incStep := workflow.Step{Name: "inc", Tool: "json", Action: "update", LoopConfig: workflow.LoopConfig{Source: "doc"}, Path: "count", UpdateOp: "increment", Value: "2"}
	if res := tool.Execute(incStep, env); !res.Success {
		t.Fatalf("increment failed: %s", res.Error)
	}

	res := tool.Execute(workflow.Step{Name: "q", Tool: "json", Action: "query", LoopConfig: workflow.LoopConfig{Source: "doc"}, Query: "@"}, env)
	if res.Output != `{"count":3,"items":["x","y"]}` {
		t.Fatalf("Output = %q", res.Output)
	}
}

func TestJSONCustomFunctions(t *testing.T) {
	env := newJSONEnv(t)
	env.Ctx.SetString("doc", `{"a":1,"b":2}`)
	tool := &JSONYAMLTool{}

	res := tool.Execute(workflow.Step{Name: "q", Tool: "json", Action: "query", LoopConfig: workflow.LoopConfig{Source: "doc"}, Query: "to_entries(@)"}, env)
	if !res.Success {
		t.Fatalf("to_entries failed: %s", res.Error)
	}
	if res.Output != `[{"key":"a","value":1},{"key":"b","value":2}]` {
		t.Fatalf("to_entries Output = %q", res.Output)
	}

	env.Ctx.SetString("nums", `[3,1,2,1,3]`)
	res = tool.Execute(workflow.Step{Name: "q2", Tool: "json", Action: "query", LoopConfig: workflow.LoopConfig{Source: "nums"}, Query: "add(@)"}, env)
	if !res.Success {
		t.Fatalf("add failed: %s", res.Error)
	}
	if res.Output != "10" {
		t.Fatalf("add Output = %q, want %q", res.Output, "10")
	}

	res = tool.Execute(workflow.Step{Name: "q3", Tool: "json", Action: "query", LoopConfig: workflow.LoopConfig{Source: "nums"}, Query: "unique(@)"}, env)
	if !res.Success {
		t.Fatalf("unique failed: %s", res.Error)
	}
	if res.Output != "[3,1,2]" {
		t.Fatalf("unique Output = %q, want %q", res.Output, "[3,1,2]")
	}
}

func TestJSONFileWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := os.WriteFile(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	env := newJSONEnv(t)
	tool := &JSONYAMLTool{}

	step := workflow.Step{Name: "s", Tool: "json", Action: "set", File: path, Path: "a", Value: "2"}
	if res := tool.Execute(step, env); !res.Success {
		t.Fatalf("set failed: %s", res.Error)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "doc.json" {
			t.Fatalf("leftover temp file %q in directory", e.Name())
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if string(data) != "{\n  \"a\": 2\n}" {
		t.Fatalf("file contents = %q", string(data))
	}
}

func TestJSONValidateStepRequiresKnownAction(t *testing.T) {
	tool := &JSONYAMLTool{}
	step := workflow.Step{Name: "bad", Tool: "json", Action: "frobnicate", LoopConfig: workflow.LoopConfig{Source: "doc"}}
	if err := tool.ValidateStep(step); err == nil {
		t.Fatal("expected a validation error for an unknown action")
	}
}
