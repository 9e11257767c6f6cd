// Package sharedstep resolves, validates, and caches shared-step definitions referenced
// by a step's uses: field, and implements the shared-step tool itself,
// which executes a resolved definition through the same step-list runner as the top-level
// workflow (internal/tools/steplist), isolated to its own child context.
package sharedstep

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paneflow-dev/paneflow/internal/workflow"
)

//go:embed builtin/steps
var builtinFS embed.FS

// DefaultMaxDepth is the configured maximum shared-step recursion stack depth.
const DefaultMaxDepth = 10

// Resolver resolves builtin:/project:/path: references to parsed SharedStep
// definitions, caching by identifier ("prefix:name") so repeated uses: references parse
// once.
type Resolver struct {
	ProjectDir string

	mu    sync.Mutex
	cache map[string]*workflow.SharedStep
}

// NewResolver constructs a Resolver rooted at the project directory (used for "project:"
// references).
func NewResolver(projectDir string) *Resolver {
	return &Resolver{ProjectDir: projectDir, cache: make(map[string]*workflow.SharedStep)}
}

// Resolve parses "<prefix>:<name>" and locates the definition:
//   - builtin: a package-embedded directory
//   - project: <project>/.claude/workflows/steps/<name>/step.{yml,yaml}
//   - path: relative to workflowDir; "step.yml" is appended when name lacks a yaml extension
func (r *Resolver) Resolve(ref, workflowDir string) (*workflow.SharedStep, error) {
	r.mu.Lock()
	if cached, ok := r.cache[ref]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	prefix, name, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, &NotFoundError{Ref: ref, Path: ref}
	}

	var ss *workflow.SharedStep
	var err error
	switch prefix {
	case "builtin":
		ss, err = r.resolveBuiltin(ref, name)
	case "project":
		ss, err = r.resolveProject(ref, name)
	case "path":
		ss, err = r.resolvePath(ref, name, workflowDir)
	default:
		return nil, &NotFoundError{Ref: ref, Path: ref}
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[ref] = ss
	r.mu.Unlock()
	return ss, nil
}

// Entry is one resolvable shared step surfaced by List.
type Entry struct {
	Ref string
	// Description holds the definition's name: value; a definition file's description:
	// key is not carried into workflow.SharedStep and is not listed.
	Description string
}

// List enumerates every builtin: step and, if ProjectDir is set, every project: step
// found under <ProjectDir>/.claude/workflows/steps.
// Entries that fail to parse are skipped rather than aborting the listing.
func (r *Resolver) List() []Entry {
	var entries []Entry

	if dirs, err := builtinFS.ReadDir("builtin/steps"); err == nil {
		for _, d := range dirs {
			if !d.IsDir() {
				continue
			}
			ref := "builtin:" + d.Name()
			ss, err := r.resolveBuiltin(ref, d.Name())
			if err != nil {
				continue
			}
			entries = append(entries, Entry{Ref: ref, Description: ss.Name})
		}
	}

	if r.ProjectDir != "" {
		base := filepath.Join(r.ProjectDir, ".claude", "workflows", "steps")
		if dirs, err := os.ReadDir(base); err == nil {
			for _, d := range dirs {
				if !d.IsDir() {
					continue
				}
				ref := "project:" + d.Name()
				ss, err := r.resolveProject(ref, d.Name())
				if err != nil {
					continue
				}
				entries = append(entries, Entry{Ref: ref, Description: ss.Name})
			}
		}
	}

	return entries
}

func (r *Resolver) resolveBuiltin(ref, name string) (*workflow.SharedStep, error) {
	for _, ext := range []string{"yml", "yaml"} {
		p := fmt.Sprintf("builtin/steps/%s/step.%s", name, ext)
		data, err := builtinFS.ReadFile(p)
		if err == nil {
			return workflow.ParseSharedStep(data, p, ref)
		}
	}
	return nil, &NotFoundError{Ref: ref, Path: fmt.Sprintf("builtin/steps/%s/step.{yml,yaml}", name)}
}

func (r *Resolver) resolveProject(ref, name string) (*workflow.SharedStep, error) {
	if r.ProjectDir == "" {
		return nil, &NotFoundError{Ref: ref, Path: "(no project directory configured)"}
	}
	base := filepath.Join(r.ProjectDir, ".claude", "workflows", "steps", name)
	for _, ext := range []string{"yml", "yaml"} {
		p := filepath.Join(base, "step."+ext)
		if _, err := os.Stat(p); err == nil {
			return workflow.LoadSharedStep(p, ref)
		}
	}
	return nil, &NotFoundError{Ref: ref, Path: filepath.Join(base, "step.{yml,yaml}")}
}

func (r *Resolver) resolvePath(ref, name, workflowDir string) (*workflow.SharedStep, error) {
	p := name
	if !strings.HasSuffix(p, ".yml") && !strings.HasSuffix(p, ".yaml") {
		p = filepath.Join(p, "step.yml")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(workflowDir, p)
	}
	if _, err := os.Stat(p); err != nil {
		return nil, &NotFoundError{Ref: ref, Path: p}
	}
	return workflow.LoadSharedStep(p, ref)
}
