package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/workflow"
	"golang.org/x/sync/errgroup"
)

// BashCheckTimeout bounds a single bash check.
const BashCheckTimeout = 60 * time.Second

// DefaultExpectCount is the regex check's default expected match count.
const DefaultExpectCount = 0

// DefaultPassPattern is the model check's default pass-detection regex.
const DefaultPassPattern = `(?i)PASS|pass|yes|ok|true`

// RegexSearcher is the external collaborator the regex check delegates to: walk files
// matching a glob (excluding another glob) and count pattern matches per file.
type RegexSearcher interface {
	Search(root, filesGlob, excludeGlob, pattern string) (matchCount int, err error)
}

// ModelInvoker is the external collaborator the model check delegates to: invoke a
// lightweight LLM with a prompt and return its raw text response.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// checkOutcome is one check's verdict, independent of the others (checks run in
// parallel).
type checkOutcome struct {
	Name     string
	Severity string
	Passed   bool
	Detail   string
}

// ChecklistTool runs an ordered list of named checks in parallel and aggregates their
// pass/warn/error counts under the step's on_fail policy.
type ChecklistTool struct {
	Regex RegexSearcher
	Model ModelInvoker
}

func (t *ChecklistTool) Name() string { return "checklist" }

func (t *ChecklistTool) ValidateStep(step workflow.Step) error {
	if len(step.Checks) == 0 {
		return &tools.ValidationError{Step: step.Name, Msg: "checklist requires at least one check"}
	}
	for _, c := range step.Checks {
		switch c.Type {
		case "bash", "regex", "model":
		default:
			return &tools.ValidationError{Step: step.Name, Msg: "unknown check type " + c.Type}
		}
	}
	return nil
}

func (t *ChecklistTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	onFail := step.OnFail
	if onFail == "" {
		onFail = "stop"
	}

	outcomes := make([]checkOutcome, len(step.Checks))
	group, gctx := errgroup.WithContext(context.Background())
	for i, c := range step.Checks {
		i, c := i, c
		group.Go(func() error {
			outcomes[i] = t.runCheck(gctx, env, c)
			return nil
		})
	}
	_ = group.Wait()

	var passCount, warnCount, infoCount, errorCount int
	var lines []string
	for _, o := range outcomes {
		status := "pass"
		if !o.Passed {
			switch o.Severity {
			case "warning":
				status = "warn"
				warnCount++
			case "info":
				status = "info"
				infoCount++
			default:
				status = "error"
				errorCount++
			}
		} else {
			passCount++
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", status, o.Name, o.Detail))
	}
	summary := strings.Join(lines, "\n")

	success := true
	switch onFail {
	case "stop":
		success = warnCount == 0 && infoCount == 0 && errorCount == 0
	case "warn":
		success = errorCount == 0
	case "continue":
		success = true
	}

	if !success {
		return tools.Result{Success: false, Output: summary, HasOutput: true, Error: fmt.Sprintf("checklist: %d error(s), %d warning(s)", errorCount, warnCount)}
	}
	return tools.Ok(summary)
}

func (t *ChecklistTool) runCheck(ctx context.Context, env *tools.Env, c workflow.Check) checkOutcome {
	severity := c.Severity
	if severity == "" {
		severity = "error"
	}
	out := checkOutcome{Name: c.Name, Severity: severity}

	switch c.Type {
	case "bash":
		out.Passed, out.Detail = t.runBashCheck(ctx, env, c)
	case "regex":
		out.Passed, out.Detail = t.runRegexCheck(env, c)
	case "model":
		out.Passed, out.Detail = t.runModelCheck(ctx, env, c)
	}
	return out
}

func (t *ChecklistTool) runBashCheck(ctx context.Context, env *tools.Env, c workflow.Check) (bool, string) {
	command := env.Ctx.Interpolate(c.Command)
	cctx, cancel := context.WithTimeout(ctx, BashCheckTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	cmd.Dir = env.ProjectDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	output := strings.TrimRight(stdout.String(), " \t\n\r")

	switch {
	case c.Expect != "":
		expect := env.Ctx.Interpolate(c.Expect)
		return output == expect, output
	case c.ExpectNot != "":
		expectNot := env.Ctx.Interpolate(c.ExpectNot)
		return output != expectNot, output
	case c.ExpectRegex != "":
		re, reErr := regexp.Compile(c.ExpectRegex)
		if reErr != nil {
			return false, "invalid expect_regex: " + reErr.Error()
		}
		return re.MatchString(output), output
	default:
		return err == nil, output
	}
}

func (t *ChecklistTool) runRegexCheck(env *tools.Env, c workflow.Check) (bool, string) {
	if t.Regex == nil {
		return false, "no regex searcher configured"
	}
	filesGlob := env.Ctx.Interpolate(c.Files)
	excludeGlob := env.Ctx.Interpolate(c.Exclude)
	pattern := env.Ctx.Interpolate(c.Pattern)
	if pattern == "" {
		pattern = c.Name
	}
	count, err := t.Regex.Search(env.ProjectDir, filesGlob, excludeGlob, pattern)
	if err != nil {
		return false, err.Error()
	}
	want := DefaultExpectCount
	if c.ExpectCount != nil {
		want = *c.ExpectCount
	}
	return count == want, fmt.Sprintf("%d match(es), expected %d", count, want)
}

func (t *ChecklistTool) runModelCheck(ctx context.Context, env *tools.Env, c workflow.Check) (bool, string) {
	if t.Model == nil {
		return false, "no model invoker configured"
	}
	prompt := env.Ctx.Interpolate(c.Prompt)
	if len(c.Context) > 0 {
		var extra []string
		for _, name := range c.Context {
			extra = append(extra, name+": "+env.Ctx.GetString(name))
		}
		prompt = prompt + "\n\n" + strings.Join(extra, "\n")
	}
	response, err := t.Model.Invoke(ctx, prompt)
	if err != nil {
		return false, err.Error()
	}
	pattern := c.PassPattern
	if pattern == "" {
		pattern = DefaultPassPattern
	}
	re, reErr := regexp.Compile(pattern)
	if reErr != nil {
		return false, "invalid pass_pattern: " + reErr.Error()
	}
	return re.MatchString(response), response
}

// globSearcher is the default RegexSearcher: glob expansion plus a regex scan over each
// matched file, with no external search-tool dependency. Globs follow filepath.Glob, so
// "**" matches a single path element and subdirectories are not searched recursively;
// the exclude glob is matched against each file's base name.
type globSearcher struct{}

// NewGlobSearcher returns the default RegexSearcher implementation.
func NewGlobSearcher() RegexSearcher { return &globSearcher{} }

func (g *globSearcher) Search(root, filesGlob, excludeGlob, pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid pattern: %w", err)
	}
	matches, err := filepath.Glob(filepath.Join(root, filesGlob))
	if err != nil {
		return 0, err
	}
	total := 0
	for _, path := range matches {
		if excludeGlob != "" {
			if ok, _ := filepath.Match(excludeGlob, filepath.Base(path)); ok {
				continue
			}
		}
		content, err := readFileQuiet(path)
		if err != nil {
			continue
		}
		total += len(re.FindAllString(content, -1))
	}
	return total, nil
}

func readFileQuiet(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CommandInvoker is the default ModelInvoker: it shells out to a configured command,
// passing the prompt on stdin and returning stdout — wrapping an external CLI rather than
// embedding an SDK, the same way the app config's other external collaborators work.
type CommandInvoker struct {
	Command string
}

// NewCommandInvoker wraps a shell command as a ModelInvoker.
func NewCommandInvoker(command string) *CommandInvoker {
	return &CommandInvoker{Command: command}
}

func (m *CommandInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, BashCheckTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "sh", "-c", m.Command)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("model command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
