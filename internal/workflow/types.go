// Package workflow defines the on-disk shape of workflow and shared-step files and the
// in-memory records the runner executes.
package workflow

import (
	"fmt"
	"time"

	"github.com/paneflow-dev/paneflow/internal/util"
)

// Duration wraps time.Duration so it can be decoded from a YAML/TOML scalar like "30s"
// or "1d".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := util.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML lets Duration decode from bare YAML scalars via yaml.v3's fallback to
// encoding.TextUnmarshaler, but yaml.v3 only calls TextUnmarshaler for !!str nodes by
// default when the type also implements yaml.Unmarshaler, so we implement both paths.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// OnError is the error policy for a step.
type OnError string

const (
	OnErrorStop     OnError = "stop"
	OnErrorContinue OnError = "continue"
)

// SplitDirection is the tmux split direction hint from a workflow's tmux config block.
type SplitDirection string

const (
	SplitVertical   SplitDirection = "vertical"
	SplitHorizontal SplitDirection = "horizontal"
)

// TmuxConfig is the workflow's terminal-multiplexer settings block.
type TmuxConfig struct {
	Split    SplitDirection `yaml:"split,omitempty"`
	IdleTime Duration       `yaml:"idle_time,omitempty"`
}

// ClaudeConfig is the workflow's external-process settings block, named for the primary
// external-interactive process this engine launches.
type ClaudeConfig struct {
	Cwd                        string   `yaml:"cwd,omitempty"`
	Model                      string   `yaml:"model,omitempty"`
	DangerouslySkipPermissions bool     `yaml:"dangerously_skip_permissions,omitempty"`
	AllowedTools               []string `yaml:"allowed_tools,omitempty"`
	AutoApprovePlan            bool     `yaml:"auto_approve_plan,omitempty"`
	AppendSystemPrompt         string   `yaml:"append_system_prompt,omitempty"`
}

// LoopConfig holds the fields shared by the loop tools (foreach/while/retry/range).
type LoopConfig struct {
	// foreach
	Source      string `yaml:"source,omitempty"`
	ItemVar     string `yaml:"item_var,omitempty"`
	IndexVar    string `yaml:"index_var,omitempty"`
	OnItemError string `yaml:"on_item_error,omitempty"`

	// while
	Condition     string `yaml:"condition,omitempty"`
	MaxIterations int    `yaml:"max_iterations,omitempty"`
	OnMaxReached  string `yaml:"on_max_reached,omitempty"`

	// retry
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	Until       string   `yaml:"until,omitempty"`
	Delay       Duration `yaml:"delay,omitempty"`
	OnFailure   string   `yaml:"on_failure,omitempty"`

	// range
	From int `yaml:"from,omitempty"`
	To   int `yaml:"to,omitempty"`
	Step int `yaml:"step,omitempty"`

	Steps []Step `yaml:"steps,omitempty"`
}

// Step is a single workflow unit. It is a tagged record: Tool selects which of the
// tool-specific fields apply. Unused fields for a given tool are simply left zero.
type Step struct {
	Name      string            `yaml:"name"`
	Tool      string            `yaml:"tool"`
	Prompt    string            `yaml:"prompt,omitempty"`
	Command   string            `yaml:"command,omitempty"`
	Value     string            `yaml:"value,omitempty"`
	Expr      string            `yaml:"expr,omitempty"`
	Target    string            `yaml:"target,omitempty"`
	When      string            `yaml:"when,omitempty"`
	OutputVar string            `yaml:"output_var,omitempty"`
	OnError   OnError           `yaml:"on_error,omitempty"`
	Visible   bool              `yaml:"visible,omitempty"`
	Cwd       string            `yaml:"cwd,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	Var       string            `yaml:"var,omitempty"`

	// Loop tools embed their config directly on the step for simplicity of authoring.
	// The json/yaml tool shares the "source" key: for it, Source names the in-memory
	// variable holding the document.
	LoopConfig `yaml:",inline"`

	// json/yaml tool (4.6.7)
	Action   string `yaml:"action,omitempty"`
	File     string `yaml:"file,omitempty"`
	Query    string `yaml:"query,omitempty"`
	Path     string `yaml:"path,omitempty"`
	UpdateOp string `yaml:"op,omitempty"`

	// checklist tool (4.6.8)
	Checks []Check `yaml:"checks,omitempty"`
	OnFail string  `yaml:"on_fail,omitempty"`

	// context/data tools (4.6.9)
	Set     map[string]string `yaml:"set,omitempty"`
	Copy    map[string]string `yaml:"copy,omitempty"`
	Clear   []string          `yaml:"clear,omitempty"`
	Export  string            `yaml:"export,omitempty"`
	Content string            `yaml:"content,omitempty"`
	Format  string            `yaml:"format,omitempty"`

	// shared-step escape hatch (4.6.6)
	Uses    string            `yaml:"uses,omitempty"`
	With    map[string]string `yaml:"with,omitempty"`
	Outputs map[string]string `yaml:"outputs,omitempty"`
}

// Check is one entry in a checklist tool's checks list.
type Check struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"`
	Severity    string   `yaml:"severity,omitempty"`
	Command     string   `yaml:"command,omitempty"`
	Expect      string   `yaml:"expect,omitempty"`
	ExpectNot   string   `yaml:"expect_not,omitempty"`
	ExpectRegex string   `yaml:"expect_regex,omitempty"`
	Files       string   `yaml:"files,omitempty"`
	Exclude     string   `yaml:"exclude,omitempty"`
	Pattern     string   `yaml:"pattern,omitempty"`
	ExpectCount *int     `yaml:"expect_count,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty"`
	Context     []string `yaml:"context,omitempty"`
	PassPattern string   `yaml:"pass_pattern,omitempty"`
}

// File is the top-level shape of a workflow YAML document.
type File struct {
	Type    string       `yaml:"type"`
	Version int          `yaml:"version"`
	Name    string       `yaml:"name"`
	Tmux    *TmuxConfig  `yaml:"tmux,omitempty"`
	Claude  *ClaudeConfig `yaml:"claude,omitempty"`
	Steps   []Step       `yaml:"steps"`
}

// Workflow is the loaded, validated in-memory representation of a workflow file.
type Workflow struct {
	Name   string
	Tmux   TmuxConfig
	Claude ClaudeConfig
	Steps  []Step
}

// FromFile converts a parsed File into a Workflow, applying defaults.
func FromFile(f *File) *Workflow {
	w := &Workflow{Name: f.Name, Steps: f.Steps}
	if f.Tmux != nil {
		w.Tmux = *f.Tmux
	}
	if f.Claude != nil {
		w.Claude = *f.Claude
	}
	normalizeSteps(w.Steps)
	return w
}

// normalizeSteps applies the shared-step shorthand: a step carrying uses: needs no
// explicit tool: discriminator. Recurses into nested loop step lists.
func normalizeSteps(steps []Step) {
	for i := range steps {
		if steps[i].Tool == "" && steps[i].Uses != "" {
			steps[i].Tool = "uses"
		}
		normalizeSteps(steps[i].Steps)
	}
}

// StepInput is one entry in a shared-step definition's inputs list.
type StepInput struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Required    bool        `yaml:"required,omitempty"`
	Default     interface{} `yaml:"default,omitempty"`
	Schema      interface{} `yaml:"schema,omitempty"`
}

// StepOutput is one entry in a shared-step definition's outputs list.
type StepOutput struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	FromVar     string `yaml:"from_var,omitempty"`
}

// SharedStepFile is the top-level shape of a shared-step YAML document.
type SharedStepFile struct {
	Type        string       `yaml:"type"`
	Version     int          `yaml:"version"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Inputs      []RawField   `yaml:"inputs,omitempty"`
	Outputs     []RawField   `yaml:"outputs,omitempty"`
	Steps       []Step       `yaml:"steps"`
}

// RawField accepts either a bare string shorthand or a full mapping for a shared step's
// inputs/outputs entries.
type RawField struct {
	Name        string
	Description string
	Required    bool
	Default     interface{}
	Schema      interface{}
	FromVar     string
}

// UnmarshalYAML implements the string-or-mapping shorthand.
func (r *RawField) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var asString string
	if err := unmarshal(&asString); err == nil {
		r.Name = asString
		r.Required = true
		return nil
	}
	var asMap struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		Required    bool        `yaml:"required"`
		Default     interface{} `yaml:"default"`
		Schema      interface{} `yaml:"schema"`
		From        string      `yaml:"from"`
		FromVar     string      `yaml:"from_var"`
	}
	if err := unmarshal(&asMap); err != nil {
		return err
	}
	r.Name = asMap.Name
	r.Description = asMap.Description
	r.Required = asMap.Required
	r.Default = asMap.Default
	r.Schema = asMap.Schema
	if asMap.FromVar != "" {
		r.FromVar = asMap.FromVar
	} else {
		r.FromVar = asMap.From
	}
	return nil
}

// SharedStep is the parsed, validated in-memory shared-step definition, cached by identifier.
type SharedStep struct {
	Identifier string
	Name       string
	Version    int
	Inputs     []StepInput
	Outputs    []StepOutput
	Steps      []Step
}
