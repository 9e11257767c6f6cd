// Package runner implements the top-level workflow runner: drive the
// top-level step list, own the signal server and pane manager lifecycles, report
// progress, and enforce error policy. The main loop itself lives in
// internal/tools/steplist so the step-walking machinery is written exactly once.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/paneflow-dev/paneflow/internal/display"
	"github.com/paneflow-dev/paneflow/internal/pane"
	"github.com/paneflow-dev/paneflow/internal/sharedstep"
	"github.com/paneflow-dev/paneflow/internal/signalsrv"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/tools/builtin"
	"github.com/paneflow-dev/paneflow/internal/tools/steplist"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
)

// DefaultSignalPort is the first port the completion-signal server attempts to bind
// when the config leaves it unset: high and rarely contended.
const DefaultSignalPort = 47932

// Options configures a single run: the CLI-facing knobs plus the collaborators the
// engine needs injected.
type Options struct {
	WorkflowPath  string
	ProjectDir    string
	Vars          map[string]string
	SignalPort    int
	TmuxSession   string
	Display       display.Display
	Multiplexer   pane.Multiplexer
	RegexSearcher builtin.RegexSearcher
	ModelInvoker  builtin.ModelInvoker
}

// StepTiming records how long a single top-level step took, for the completion summary.
type StepTiming = tools.StepTiming

// Summary is the completion report: counts, elapsed time, per-step times.
type Summary struct {
	WorkflowName string
	Total        int
	Succeeded    int
	Skipped      int
	Failed       int
	Elapsed      time.Duration
	Steps        []StepTiming
}

// Run loads and executes a workflow end to end. It always tears down the signal server
// and any current pane, even on error or interrupt; cleanup never raises, and is
// best-effort.
func Run(ctx context.Context, opts Options) (Summary, error) {
	start := time.Now()
	summary := Summary{}

	wf, err := workflow.Load(opts.WorkflowPath)
	if err != nil {
		return summary, err
	}
	summary.WorkflowName = wf.Name
	summary.Total = len(wf.Steps)

	tempDir, err := os.MkdirTemp("", "orchestrator-run-*")
	if err != nil {
		return summary, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	varCtx := varctx.New(opts.ProjectDir, tempDir)
	for k, v := range opts.Vars {
		varCtx.SetString(k, v)
	}

	signalPort := opts.SignalPort
	if signalPort == 0 {
		signalPort = DefaultSignalPort
	}
	server, err := signalsrv.Start(signalPort)
	if err != nil {
		return summary, err
	}
	defer server.Stop()

	mux := opts.Multiplexer
	if mux == nil {
		mux = pane.NewTmuxMultiplexer(opts.TmuxSession)
	}
	paneMgr := pane.NewManager(mux, server)
	// Cleanup must proceed even when ctx is already cancelled (interrupt path), so the
	// close protocol runs on a fresh context.
	defer func() { paneMgr.Close(context.Background(), paneMgr.Current()) }()

	disp := opts.Display
	if disp == nil {
		disp = display.Noop{}
	}

	registry := tools.NewRegistry()
	builtin.Register(registry, builtin.Deps{
		RegexSearcher: opts.RegexSearcher,
		ModelInvoker:  opts.ModelInvoker,
		Port:          server.Port,
		Claude:        wf.Claude,
	})
	resolver := sharedstep.NewResolver(opts.ProjectDir)
	sharedTool := sharedstep.New(resolver)
	registry.Add(sharedTool)

	stepRunner := steplist.New(registry)

	workflowDir, err := filepath.Abs(filepath.Dir(opts.WorkflowPath))
	if err != nil {
		workflowDir = filepath.Dir(opts.WorkflowPath)
	}

	env := &tools.Env{
		Ctx:         varCtx,
		PaneMgr:     paneMgr,
		Signal:      server,
		Display:     disp,
		ProjectDir:  opts.ProjectDir,
		WorkflowDir: workflowDir,
		Run:         stepRunner,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	type runResult struct {
		outcome tools.Outcome
		err     error
	}
	done := make(chan runResult, 1)
	go func() {
		outcome, runErr := stepRunner.RunSteps(wf.Steps, env)
		done <- runResult{outcome: outcome, err: runErr}
	}()

	var outcome tools.Outcome
	select {
	case rr := <-done:
		outcome, err = rr.outcome, rr.err
	case <-runCtx.Done():
		err = UserInterrupt{}
	}

	summary.Elapsed = time.Since(start)
	summary.Steps = outcome.Steps
	summary.Succeeded, summary.Skipped, summary.Failed = tallyOutcome(outcome.Steps, summary.Total)

	disp.Emit(display.Event{Kind: display.EventRunSummary, Message: formatSummary(summary, err)})
	return summary, err
}

// tallyOutcome counts succeeded/failed from the step-list engine's recorded per-step
// timings; any top-level step the run never reached (stopped early, or interrupted) is
// counted as skipped.
func tallyOutcome(steps []tools.StepTiming, total int) (succeeded, skipped, failed int) {
	for _, s := range steps {
		if s.Success {
			succeeded++
		} else {
			failed++
		}
	}
	skipped = total - succeeded - failed
	if skipped < 0 {
		skipped = 0
	}
	return succeeded, skipped, failed
}

func formatSummary(s Summary, err error) string {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	header := fmt.Sprintf("workflow %q %s in %s (%d steps)", s.WorkflowName, status, s.Elapsed.Round(time.Millisecond), s.Total)
	for _, st := range s.Steps {
		stepStatus := "ok"
		if !st.Success {
			stepStatus = "failed"
		}
		header += fmt.Sprintf("\n  %s: %s (%s)", st.Name, stepStatus, st.Duration.Round(time.Millisecond))
	}
	return header
}
