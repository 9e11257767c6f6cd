// Package builtin provides the concrete Tool implementations for every step kind:
// external-interactive, shell, set, goto, the loop tools, the json/yaml tool, the
// checklist tool, and the context/data tools. The shared-step tool itself lives in
// internal/sharedstep and is registered separately (internal/runner adds it); it runs
// resolved definitions through the tools.Runner seam.
package builtin

import (
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// Deps holds the external collaborators and resolved per-run settings the built-in tools
// need. RegexSearcher and ModelInvoker are the checklist tool's external
// collaborators; Port and Claude are the completion-signal port and the workflow's
// claude: block, both needed to launch an external-interactive process that can reach
// the signal server.
type Deps struct {
	RegexSearcher RegexSearcher
	ModelInvoker  ModelInvoker
	Port          int
	Claude        workflow.ClaudeConfig
}

// Register installs every built-in tool into reg.
func Register(reg *tools.Registry, deps Deps) {
	reg.Add(&ExternalInteractiveTool{
		Port:               deps.Port,
		Cwd:                deps.Claude.Cwd,
		Model:              deps.Claude.Model,
		SkipPermissions:    deps.Claude.DangerouslySkipPermissions,
		AllowedTools:       deps.Claude.AllowedTools,
		AppendSystemPrompt: deps.Claude.AppendSystemPrompt,
		AutoApprovePlan:    deps.Claude.AutoApprovePlan,
	})
	reg.Add(&ShellTool{})
	reg.Add(&SetTool{})
	reg.Add(&GotoTool{})
	reg.Add(&ForeachTool{})
	reg.Add(&WhileTool{})
	reg.Add(&RetryTool{})
	reg.Add(&RangeTool{})
	reg.Add(&JSONYAMLTool{})
	reg.Add(&ChecklistTool{Regex: deps.RegexSearcher, Model: deps.ModelInvoker})
	reg.Add(&ContextTool{})
	reg.Add(&DataTool{})
}
