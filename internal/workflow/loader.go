package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigError marks a malformed workflow or shared-step file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config error in %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load parses a workflow file from disk and validates its shape.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parsing yaml: %w", err)}
	}
	if err := validateFile(&f); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return FromFile(&f), nil
}

func validateFile(f *File) error {
	if f.Type != "" && f.Type != "claude-workflow" {
		return fmt.Errorf("unexpected type %q, want claude-workflow", f.Type)
	}
	if f.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("workflow must contain at least one step")
	}
	seen := make(map[string]bool, len(f.Steps))
	for i, s := range f.Steps {
		if s.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("step %d: duplicate step name %q", i, s.Name)
		}
		seen[s.Name] = true
		if s.Tool == "" && s.Uses == "" {
			return fmt.Errorf("step %q: tool is required", s.Name)
		}
	}
	return nil
}

// Discover lists candidate workflow files in a directory. It is a CLI-layer
// convenience, not part of the core engine.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yml" || ext == ".yaml" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// LoadSharedStep parses and validates a shared-step file on disk.
func LoadSharedStep(path, identifier string) (*SharedStep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return ParseSharedStep(data, path, identifier)
}

// ParseSharedStep parses and validates shared-step YAML already read into memory, shared
// by LoadSharedStep (disk) and internal/sharedstep's embedded-builtin resolution path.
func ParseSharedStep(data []byte, path, identifier string) (*SharedStep, error) {
	var f SharedStepFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parsing yaml: %w", err)}
	}
	if f.Type != "claude-step" {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("unexpected type %q, want claude-step", f.Type)}
	}
	if f.Version != 1 {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("unsupported version %d, want 1", f.Version)}
	}
	if len(f.Steps) == 0 {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("steps must be a non-empty list")}
	}
	normalizeSteps(f.Steps)
	ss := &SharedStep{Identifier: identifier, Name: f.Name, Version: f.Version, Steps: f.Steps}
	for _, in := range f.Inputs {
		ss.Inputs = append(ss.Inputs, StepInput{
			Name: in.Name, Description: in.Description, Required: in.Required,
			Default: in.Default, Schema: in.Schema,
		})
	}
	for _, out := range f.Outputs {
		fromVar := out.FromVar
		if fromVar == "" {
			fromVar = out.Name
		}
		ss.Outputs = append(ss.Outputs, StepOutput{Name: out.Name, Description: out.Description, FromVar: fromVar})
	}
	return ss, nil
}
