package varctx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultExternalizeThreshold is the default character-length threshold above which a
// resolved value is written to a file instead of inlined.
const DefaultExternalizeThreshold = 10000

var slugPattern = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Slugify sanitizes an arbitrary string into a filesystem-safe file-name fragment, shared
// by the externalization path above and by the data tool for its output file names.
func Slugify(s string) string {
	return slugPattern.ReplaceAllString(s, "_")
}

// Context is the mutable per-run variable store. It is
// never concurrently mutated: the engine is single-threaded with respect to context writes.
type Context struct {
	vars       map[string]Value
	ProjectDir string
	TempDir    string

	// ExternalizeThreshold, in characters, above which InterpolateForClaude writes the
	// resolved value to a file under TempDir and substitutes "@<path>" instead (plain
	// Interpolate and the expression-language path never externalize).
	ExternalizeThreshold int
}

// New creates an empty context rooted at the given project and temp directories.
func New(projectDir, tempDir string) *Context {
	return &Context{
		vars:                 make(map[string]Value),
		ProjectDir:           projectDir,
		TempDir:              tempDir,
		ExternalizeThreshold: DefaultExternalizeThreshold,
	}
}

// Set is a total replacement of a single variable.
func (c *Context) Set(name string, v Value) {
	c.vars[name] = v
}

// SetString is a convenience wrapper for the common case of storing a tool's string output.
func (c *Context) SetString(name, s string) {
	c.Set(name, StringValue(s))
}

// Update is a total replacement of multiple variables at once.
func (c *Context) Update(m map[string]Value) {
	for k, v := range m {
		c.vars[k] = v
	}
}

// Get returns a variable's value and whether it was present.
func (c *Context) Get(name string) (Value, bool) {
	v, ok := c.vars[name]
	return v, ok
}

// GetString returns a variable's stringified form, or "" if absent.
func (c *Context) GetString(name string) string {
	v, ok := c.vars[name]
	if !ok {
		return ""
	}
	return v.Stringify()
}

// Delete removes a variable. The base context itself never calls this; the loop tools
// use it to restore prior values on exit, and the context tool's clear action uses it.
func (c *Context) Delete(name string) {
	delete(c.vars, name)
}

// Snapshot returns a shallow copy of the variable map, e.g. for the context tool's "export".
func (c *Context) Snapshot() map[string]Value {
	out := make(map[string]Value, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}

// resolvePath resolves the path "v.s1.s2...sk" against the variable map.
// It returns the resolved Value and whether resolution succeeded (false means: fall back
// to the literal placeholder text).
func (c *Context) resolvePath(p Path) (Value, bool) {
	root, ok := c.vars[p.Root]
	if !ok {
		return Value{}, false
	}
	if len(p.Segments) == 0 {
		return root, true
	}

	var cur interface{}
	switch root.Kind {
	case KindString:
		var decoded interface{}
		if err := json.Unmarshal([]byte(root.Str), &decoded); err != nil {
			// Not JSON: treat as string and stop — a path beyond a leaf returns the
			// original placeholder.
			return Value{}, false
		}
		cur = decoded
	case KindObject:
		cur = root.Object
	case KindArray:
		cur = root.Array
	default:
		return Value{}, false
	}

	for _, seg := range p.Segments {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return Value{}, false
			}
			cur = next
		case []interface{}:
			idx, isIdx := segmentIndex(seg)
			if !isIdx || idx >= len(node) {
				return Value{}, false
			}
			cur = node[idx]
		default:
			return Value{}, false
		}
	}
	return FromAny(cur), true
}

// Interpolate replaces every {path} placeholder in template with its resolved,
// stringified value. Unmatched placeholders pass through unchanged.
func (c *Context) Interpolate(template string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		raw := match[1 : len(match)-1]
		p := ParsePath(raw)
		v, ok := c.resolvePath(p)
		if !ok {
			return match
		}
		return v.Stringify()
	})
}

// InterpolateForClaude is Interpolate with large-value externalization: any resolved
// value whose stringified length exceeds ExternalizeThreshold is written to
// <TempDir>/<slug>.txt and the placeholder is replaced with "@<absolute-path>" instead.
// Within one call, re-referenced paths share a single file (deduped by path).
func (c *Context) InterpolateForClaude(template string) (string, error) {
	written := make(map[string]string) // raw path text -> file path
	var outerErr error
	result := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		if outerErr != nil {
			return match
		}
		raw := match[1 : len(match)-1]
		p := ParsePath(raw)
		v, ok := c.resolvePath(p)
		if !ok {
			return match
		}
		s := v.Stringify()
		if len(s) <= c.ExternalizeThreshold {
			return s
		}
		if path, ok := written[raw]; ok {
			return "@" + path
		}
		if c.TempDir == "" {
			outerErr = fmt.Errorf("cannot externalize %q: no temp directory configured", raw)
			return match
		}
		path := filepath.Join(c.TempDir, Slugify(raw)+".txt")
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			outerErr = fmt.Errorf("externalizing %q: %w", raw, err)
			return match
		}
		written[raw] = path
		return "@" + path
	})
	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// ValidName reports whether a string is a legal variable name.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if i > 0 && !isLetter && !isDigit {
			return false
		}
	}
	return true
}

// JoinPlaceholder builds the placeholder "{a.b.c}" from its path parts ("a", "b", "c").
func JoinPlaceholder(parts ...string) string {
	return "{" + strings.Join(parts, ".") + "}"
}
