package varctx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInterpolateSubstitutesDefinedVariable(t *testing.T) {
	ctx := New("", t.TempDir())
	ctx.SetString("name", "world")
	got := ctx.Interpolate("hello {name}")
	if got != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}

func TestInterpolateUndefinedPlaceholderPassesThrough(t *testing.T) {
	ctx := New("", t.TempDir())
	got := ctx.Interpolate("hello {missing}")
	if got != "hello {missing}" {
		t.Fatalf("got %q, want pass-through", got)
	}
}

func TestInterpolateDotIndexPath(t *testing.T) {
	ctx := New("", t.TempDir())
	ctx.Set("data", FromAny(map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"id": 1.0},
			map[string]interface{}{"id": 2.0},
		},
	}))
	got := ctx.Interpolate("second id is {data.items.1.id}")
	if got != "second id is 2" {
		t.Fatalf("got %q", got)
	}
}

func TestInterpolateDescendsIntoJSONEncodedString(t *testing.T) {
	ctx := New("", t.TempDir())
	ctx.SetString("payload", `{"status":"ok"}`)
	got := ctx.Interpolate("{payload.status}")
	if got != "ok" {
		t.Fatalf("got %q, want %q", got, "ok")
	}
}

func TestInterpolateForClaudeInlinesShortValues(t *testing.T) {
	tempDir := t.TempDir()
	ctx := New("", tempDir)
	ctx.SetString("short", "a short value")
	out, err := ctx.InterpolateForClaude("value: {short}")
	if err != nil {
		t.Fatalf("InterpolateForClaude: %v", err)
	}
	if out != "value: a short value" {
		t.Fatalf("got %q", out)
	}
}

func TestInterpolateForClaudeExternalizesLongValues(t *testing.T) {
	tempDir := t.TempDir()
	ctx := New("", tempDir)
	ctx.ExternalizeThreshold = 10
	long := strings.Repeat("x", 11)
	ctx.SetString("big", long)

	out, err := ctx.InterpolateForClaude("payload: {big}")
	if err != nil {
		t.Fatalf("InterpolateForClaude: %v", err)
	}
	if !strings.HasPrefix(out, "payload: @") {
		t.Fatalf("got %q, want externalized path reference", out)
	}
	path := strings.TrimPrefix(out, "payload: @")
	if filepath.Dir(path) != tempDir {
		t.Fatalf("externalized file %q not under temp dir %q", path, tempDir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading externalized file: %v", err)
	}
	if string(data) != long {
		t.Fatalf("externalized file contents = %q, want the original value", string(data))
	}
}

// A value exactly at the threshold stays inlined; only values strictly above it
// externalize.
func TestInterpolateForClaudeThresholdBoundary(t *testing.T) {
	tempDir := t.TempDir()
	ctx := New("", tempDir)
	ctx.ExternalizeThreshold = 10
	exact := strings.Repeat("y", 10)
	ctx.SetString("exact", exact)

	out, err := ctx.InterpolateForClaude("{exact}")
	if err != nil {
		t.Fatalf("InterpolateForClaude: %v", err)
	}
	if out != exact {
		t.Fatalf("got %q, want inlined value at exact threshold length", out)
	}
}

func TestInterpolateForClaudeDedupesRepeatedPath(t *testing.T) {
	tempDir := t.TempDir()
	ctx := New("", tempDir)
	ctx.ExternalizeThreshold = 5
	ctx.SetString("big", strings.Repeat("z", 20))

	out, err := ctx.InterpolateForClaude("{big} and again {big}")
	if err != nil {
		t.Fatalf("InterpolateForClaude: %v", err)
	}
	fields := strings.Split(out, " and again ")
	if len(fields) != 2 || fields[0] != fields[1] {
		t.Fatalf("expected both references to externalize to the same file path, got %q", out)
	}
}

func TestInterpolateForClaudeErrorsWithoutTempDir(t *testing.T) {
	ctx := New("", "")
	ctx.ExternalizeThreshold = 5
	ctx.SetString("big", strings.Repeat("w", 20))
	if _, err := ctx.InterpolateForClaude("{big}"); err == nil {
		t.Fatal("expected an error when externalization is needed but no temp dir is configured")
	}
}

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"name":     true,
		"_private": true,
		"a1b2":     true,
		"":         false,
		"1abc":     false,
		"has-dash": false,
		"has.dot":  false,
	}
	for name, want := range cases {
		if got := ValidName(name); got != want {
			t.Fatalf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDeleteAndSnapshot(t *testing.T) {
	ctx := New("", t.TempDir())
	ctx.SetString("a", "1")
	ctx.SetString("b", "2")
	ctx.Delete("a")
	if _, ok := ctx.Get("a"); ok {
		t.Fatal("expected a to be deleted")
	}
	snap := ctx.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(snap))
	}
	snap["b"] = StringValue("mutated")
	if got := ctx.GetString("b"); got != "2" {
		t.Fatalf("snapshot mutation leaked into context: got %q", got)
	}
}
