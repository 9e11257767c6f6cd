// Package tools defines the uniform Tool interface and the types shared by
// every concrete tool and by the step-list execution loop (internal/tools/steplist) and
// the top-level runner (internal/runner). Concrete tool implementations live in
// internal/tools/builtin, replacing the module-global auto-registration pattern (Design
// Note 2) with an explicit registry built at startup and injected here.
package tools

import (
	"time"

	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/pane"
	"github.com/paneflow-dev/paneflow/internal/signalsrv"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// LoopSignal is the internal marker a tool returns to request break/continue from the
// nearest enclosing loop.
type LoopSignal int

const (
	LoopNone LoopSignal = iota
	LoopBreak
	LoopContinue
)

// Result is a tool's outcome.
type Result struct {
	Success    bool
	Output     string
	HasOutput  bool
	Error      string
	GotoStep   string
	LoopSignal LoopSignal
}

// Ok builds a successful result with output.
func Ok(output string) Result {
	return Result{Success: true, Output: output, HasOutput: true}
}

// OkNoOutput builds a successful result with no output.
func OkNoOutput() Result {
	return Result{Success: true}
}

// Fail builds a failed result.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// ValidationError marks a missing or invalid required step field; it always aborts the
// run rather than following the step's on_error policy.
type ValidationError struct {
	Step string
	Msg  string
}

func (e *ValidationError) Error() string {
	return "step " + e.Step + ": " + e.Msg
}

// Runner is the callback seam a tool uses to execute a nested step list (used by the loop
// tools and the shared-step tool). internal/tools/steplist.Runner implements this, and
// internal/runner uses that same Runner for the outermost step list.
type Runner interface {
	RunSteps(steps []workflow.Step, env *Env) (Outcome, error)
}

// StepTiming records how long a single step in a step list took and whether it
// succeeded, for the completion summary's per-step report.
type StepTiming struct {
	Name     string
	Duration time.Duration
	Success  bool
}

// Outcome is what running a nested step list produced, consumed by loop tools to decide
// whether to break/continue/stop. A nested goto targeting a name outside the running list
// surfaces as the runner's GotoError instead.
type Outcome struct {
	Signal LoopSignal
	// Steps records the per-step timings for every step this call executed, in execution
	// order (including steps reached more than once via goto).
	Steps []StepTiming
}

// Env bundles everything a tool execution needs: the mutable context, the pane manager,
// the signal server, the display dependency, and a callback to run nested steps.
type Env struct {
	Ctx        *varctx.Context
	PaneMgr    *pane.Manager
	Signal     *signalsrv.Server
	Display    display.Display
	ProjectDir string
	// WorkflowDir is the directory containing the workflow file being run, used to resolve
	// uses: "path:..." shared-step references relative to it.
	WorkflowDir string
	IndentLvl   int
	Run         Runner
}

// Tool is the uniform interface every step kind implements.
type Tool interface {
	Name() string
	ValidateStep(step workflow.Step) error
	Execute(step workflow.Step, env *Env) Result
}

// Registry maps a step's "tool" discriminator to its Tool implementation, constructed
// explicitly at startup rather than via package-init auto-registration.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Add registers a tool under its own Name().
func (r *Registry) Add(t Tool) {
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}
