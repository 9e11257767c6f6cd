package varctx

import (
	"regexp"
	"strconv"
	"strings"
)

// placeholderPattern matches {IDENT(.(IDENT|NUMBER))*}. The grammar is plain {...}
// with no default-value syntax and no namespaces.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\}`)

// Path is a parsed placeholder reference: a root variable name plus a sequence of
// object-key-or-array-index segments, parsed once ahead of use rather than re-scanning
// the template string per substitution.
type Path struct {
	Root     string
	Segments []string
}

// ParsePath splits "v.s1.s2" into its root and segments.
func ParsePath(raw string) Path {
	parts := strings.Split(raw, ".")
	return Path{Root: parts[0], Segments: parts[1:]}
}

// segmentIndex reports whether a path segment is a pure numeric array index, and its value.
func segmentIndex(seg string) (int, bool) {
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
