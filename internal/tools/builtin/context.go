package builtin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"

	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// ContextTool runs set/copy/clear/export actions over the execution context.
type ContextTool struct{}

func (t *ContextTool) Name() string { return "context" }

func (t *ContextTool) ValidateStep(step workflow.Step) error {
	switch step.Action {
	case "set", "copy", "clear", "export":
	default:
		return &tools.ValidationError{Step: step.Name, Msg: "context action must be one of set, copy, clear, export"}
	}
	return nil
}

func (t *ContextTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	switch step.Action {
	case "set":
		for k, v := range step.Set {
			env.Ctx.SetString(k, env.Ctx.Interpolate(v))
		}
		return tools.OkNoOutput()

	case "copy":
		for dst, src := range step.Copy {
			if v, ok := env.Ctx.Get(src); ok {
				env.Ctx.Set(dst, v)
			}
		}
		return tools.OkNoOutput()

	case "clear":
		for _, name := range step.Clear {
			env.Ctx.Delete(name)
		}
		return tools.OkNoOutput()

	case "export":
		path := env.Ctx.Interpolate(step.Export)
		snapshot := env.Ctx.Snapshot()
		raw := make(map[string]interface{}, len(snapshot))
		for k, v := range snapshot {
			raw[k] = v.Raw()
		}
		b, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return tools.Fail(fmt.Sprintf("context export: %v", err))
		}
		if err := os.WriteFile(path, b, 0o600); err != nil {
			return tools.Fail(fmt.Sprintf("context export: %v", err))
		}
		return tools.Ok(path)
	}
	return tools.Fail("unreachable")
}

// DataTool writes interpolated content to a file under the run's temp dir, returning
// its absolute path.
type DataTool struct{}

func (t *DataTool) Name() string { return "data" }

func (t *DataTool) ValidateStep(step workflow.Step) error {
	if step.Content == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "data requires content"}
	}
	switch step.Format {
	case "", "json", "text", "markdown":
	default:
		return &tools.ValidationError{Step: step.Name, Msg: "data format must be one of json, text, markdown"}
	}
	return nil
}

func (t *DataTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	content := env.Ctx.Interpolate(step.Content)
	format := step.Format
	if format == "" {
		format = "text"
	}

	var out []byte
	var ext string
	switch format {
	case "json":
		var decoded interface{}
		if err := json.Unmarshal([]byte(content), &decoded); err != nil {
			return tools.Fail(fmt.Sprintf("data: content is not valid JSON: %v", err))
		}
		b, err := json.MarshalIndent(decoded, "", "  ")
		if err != nil {
			return tools.Fail(fmt.Sprintf("data: %v", err))
		}
		out, ext = b, ".json"
	case "markdown":
		if _, err := glamour.Render(content, "notty"); err != nil {
			return tools.Fail(fmt.Sprintf("data: content is not renderable markdown: %v", err))
		}
		out, ext = []byte(content), ".md"
	default:
		out, ext = []byte(content), ".txt"
	}

	name := step.Name
	if name == "" {
		name = "data"
	}
	path := filepath.Join(env.Ctx.TempDir, varctx.Slugify(name)+ext)
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return tools.Fail(fmt.Sprintf("data: %v", err))
	}
	return tools.Ok(path)
}
