package builtin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
	"github.com/paneflow-dev/paneflow/internal/tools"
	"github.com/paneflow-dev/paneflow/internal/varctx"
	"github.com/paneflow-dev/paneflow/internal/workflow"
	"gopkg.in/yaml.v3"
)

// JSONYAMLTool runs query/set/update/delete over a file: (format by extension) or an
// in-memory source: variable.
type JSONYAMLTool struct{}

func (t *JSONYAMLTool) Name() string { return "json" }

func (t *JSONYAMLTool) ValidateStep(step workflow.Step) error {
	switch step.Action {
	case "query", "set", "update", "delete":
	default:
		return &tools.ValidationError{Step: step.Name, Msg: "json action must be one of query, set, update, delete"}
	}
	if step.File == "" && step.Source == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "json requires file or source"}
	}
	if step.Action != "query" && step.Path == "" {
		return &tools.ValidationError{Step: step.Name, Msg: "json " + step.Action + " requires path"}
	}
	return nil
}

func (t *JSONYAMLTool) Execute(step workflow.Step, env *tools.Env) tools.Result {
	doc, loadErr := loadDoc(step, env)
	if loadErr != nil {
		return tools.Fail(loadErr.Error())
	}

	switch step.Action {
	case "query":
		result, err := queryDoc(doc.data, env.Ctx.Interpolate(step.Query))
		if err != nil {
			return tools.Fail(fmt.Sprintf("json query: %v", err))
		}
		return tools.Ok(stringifyQueryResult(result))

	case "set":
		path := parseDocPath(env.Ctx.Interpolate(step.Path))
		value := decodeValueField(env, step.Value)
		doc.data = setAtPath(doc.data, path, value)

	case "update":
		path := parseDocPath(env.Ctx.Interpolate(step.Path))
		cur, _ := getAtPath(doc.data, path)
		updated, err := applyUpdate(cur, step.UpdateOp, decodeValueField(env, step.Value))
		if err != nil {
			return tools.Fail(fmt.Sprintf("json update: %v", err))
		}
		doc.data = setAtPath(doc.data, path, updated)

	case "delete":
		path := parseDocPath(env.Ctx.Interpolate(step.Path))
		doc.data = deleteAtPath(doc.data, path)
	}

	if err := doc.save(); err != nil {
		return tools.Fail(err.Error())
	}
	return tools.OkNoOutput()
}

// doc bundles the decoded tree with the write-back it needs (file path + format, or a
// context variable name).
type doc struct {
	data     interface{}
	filePath string
	isYAML   bool
	ctx      *varctx.Context
	varName  string
}

func loadDoc(step workflow.Step, env *tools.Env) (*doc, error) {
	if step.File != "" {
		path := env.Ctx.Interpolate(step.File)
		isYAML := strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml")
		raw, err := os.ReadFile(path)
		if err != nil {
			if step.Action == "set" && os.IsNotExist(err) {
				return &doc{data: nil, filePath: path, isYAML: isYAML}, nil
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var data interface{}
		if isYAML {
			err = yaml.Unmarshal(raw, &data)
		} else {
			err = json.Unmarshal(raw, &data)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return &doc{data: normalizeYAML(data), filePath: path, isYAML: isYAML}, nil
	}

	v, ok := env.Ctx.Get(step.Source)
	if !ok {
		return &doc{data: nil, ctx: env.Ctx, varName: step.Source}, nil
	}
	var data interface{}
	if v.Kind == varctx.KindString {
		if err := json.Unmarshal([]byte(v.Str), &data); err != nil {
			return nil, fmt.Errorf("source %q is not valid JSON: %w", step.Source, err)
		}
	} else {
		data = v.Raw()
	}
	return &doc{data: data, ctx: env.Ctx, varName: step.Source}, nil
}

func (d *doc) save() error {
	if d.filePath != "" {
		var out []byte
		var err error
		if d.isYAML {
			out, err = yaml.Marshal(d.data)
		} else {
			out, err = json.MarshalIndent(d.data, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("serializing %s: %w", d.filePath, err)
		}
		tmp, err := os.CreateTemp(filepath.Dir(d.filePath), ".tmp-*")
		if err != nil {
			return fmt.Errorf("creating temp file for %s: %w", d.filePath, err)
		}
		if _, err := tmp.Write(out); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return err
		}
		tmp.Close()
		return os.Rename(tmp.Name(), d.filePath)
	}
	b, err := json.Marshal(d.data)
	if err != nil {
		return fmt.Errorf("serializing %s: %w", d.varName, err)
	}
	d.ctx.SetString(d.varName, string(b))
	return nil
}

// normalizeYAML recursively converts yaml.v3's map[string]interface{} (it decodes mappings
// as string-keyed maps already) plus any nested scalars into plain JSON-compatible values.
func normalizeYAML(v interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

func decodeValueField(env *tools.Env, raw string) interface{} {
	interpolated := env.Ctx.Interpolate(raw)
	var decoded interface{}
	if err := json.Unmarshal([]byte(interpolated), &decoded); err == nil {
		return decoded
	}
	return interpolated
}

// pathSegment is either a map key or an array index.
type pathSegment struct {
	key     string
	index   int
	isIndex bool
}

// parseDocPath parses a simple dot+bracket path like "a.b[0].c".
func parseDocPath(raw string) []pathSegment {
	var segs []pathSegment
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, pathSegment{key: cur.String()})
			cur.Reset()
		}
	}
	i := 0
	for i < len(raw) {
		c := raw[i]
		switch c {
		case '.':
			flush()
			i++
		case '[':
			flush()
			j := strings.IndexByte(raw[i:], ']')
			if j < 0 {
				segs = append(segs, pathSegment{key: raw[i+1:]})
				i = len(raw)
				break
			}
			idxStr := raw[i+1 : i+j]
			if idx, err := strconv.Atoi(idxStr); err == nil {
				segs = append(segs, pathSegment{index: idx, isIndex: true})
			} else {
				segs = append(segs, pathSegment{key: idxStr})
			}
			i += j + 1
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return segs
}

func getAtPath(data interface{}, path []pathSegment) (interface{}, bool) {
	cur := data
	for _, seg := range path {
		if seg.isIndex {
			arr, ok := cur.([]interface{})
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
		} else {
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, false
			}
			v, ok := m[seg.key]
			if !ok {
				return nil, false
			}
			cur = v
		}
	}
	return cur, true
}

// setAtPath returns a new root tree with value written at path, creating intermediate
// objects/arrays as needed.
func setAtPath(root interface{}, path []pathSegment, value interface{}) interface{} {
	if len(path) == 0 {
		return value
	}
	return setAtPathRec(root, path, value)
}

func setAtPathRec(node interface{}, path []pathSegment, value interface{}) interface{} {
	seg := path[0]
	rest := path[1:]

	if seg.isIndex {
		arr, ok := node.([]interface{})
		if !ok {
			arr = nil
		}
		for len(arr) <= seg.index {
			arr = append(arr, nil)
		}
		if len(rest) == 0 {
			arr[seg.index] = value
		} else {
			arr[seg.index] = setAtPathRec(arr[seg.index], rest, value)
		}
		return arr
	}

	m, ok := node.(map[string]interface{})
	if !ok || m == nil {
		m = map[string]interface{}{}
	}
	if len(rest) == 0 {
		m[seg.key] = value
	} else {
		m[seg.key] = setAtPathRec(m[seg.key], rest, value)
	}
	return m
}

func deleteAtPath(root interface{}, path []pathSegment) interface{} {
	if len(path) == 0 {
		return root
	}
	parentPath, last := path[:len(path)-1], path[len(path)-1]
	parent, ok := getAtPath(root, parentPath)
	if !ok {
		return root
	}
	if last.isIndex {
		arr, ok := parent.([]interface{})
		if !ok || last.index < 0 || last.index >= len(arr) {
			return root
		}
		arr = append(arr[:last.index], arr[last.index+1:]...)
		return setAtPath(root, parentPath, arr)
	}
	m, ok := parent.(map[string]interface{})
	if !ok {
		return root
	}
	delete(m, last.key)
	return setAtPath(root, parentPath, m)
}

func applyUpdate(cur interface{}, op string, value interface{}) (interface{}, error) {
	switch op {
	case "append":
		arr, _ := cur.([]interface{})
		return append(arr, value), nil
	case "prepend":
		arr, _ := cur.([]interface{})
		return append([]interface{}{value}, arr...), nil
	case "increment":
		n, ok := cur.(float64)
		if !ok {
			n = 0
		}
		delta, ok := value.(float64)
		if !ok {
			delta = 1
		}
		return n + delta, nil
	case "merge":
		base, ok := cur.(map[string]interface{})
		if !ok {
			base = map[string]interface{}{}
		}
		patch, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("merge value must be an object")
		}
		for k, v := range patch {
			base[k] = v
		}
		return base, nil
	default:
		return nil, fmt.Errorf("unknown update op %q", op)
	}
}

// queryDoc evaluates a JMESPath expression, special-casing the custom functions
// (to_entries, from_entries, unique, flatten, add) that go-jmespath's
// upstream function table doesn't provide, by unwrapping a single outermost call to one
// of them and applying it natively in Go around the inner JMESPath evaluation.
func queryDoc(data interface{}, expr string) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	for _, fn := range []string{"to_entries", "from_entries", "unique", "flatten", "add"} {
		prefix := fn + "("
		if strings.HasPrefix(expr, prefix) && strings.HasSuffix(expr, ")") {
			inner := expr[len(prefix) : len(expr)-1]
			return evalCustomFn(data, fn, inner)
		}
	}
	return jmespath.Search(expr, data)
}

func evalCustomFn(data interface{}, fn, innerExpr string) (interface{}, error) {
	innerExpr = strings.TrimSpace(innerExpr)
	var inner interface{} = data
	var err error
	if innerExpr != "" && innerExpr != "@" {
		inner, err = jmespath.Search(innerExpr, data)
		if err != nil {
			return nil, err
		}
	}
	switch fn {
	case "to_entries":
		m, ok := inner.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("to_entries requires an object")
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]interface{}, 0, len(m))
		for _, k := range keys {
			entries = append(entries, map[string]interface{}{"key": k, "value": m[k]})
		}
		return entries, nil

	case "from_entries":
		arr, ok := inner.([]interface{})
		if !ok {
			return nil, fmt.Errorf("from_entries requires an array")
		}
		out := map[string]interface{}{}
		for _, e := range arr {
			em, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			k, _ := em["key"].(string)
			out[k] = em["value"]
		}
		return out, nil

	case "unique":
		arr, ok := inner.([]interface{})
		if !ok {
			return nil, fmt.Errorf("unique requires an array")
		}
		seen := map[string]bool{}
		var out []interface{}
		for _, v := range arr {
			b, _ := json.Marshal(v)
			if !seen[string(b)] {
				seen[string(b)] = true
				out = append(out, v)
			}
		}
		return out, nil

	case "flatten":
		arr, ok := inner.([]interface{})
		if !ok {
			return nil, fmt.Errorf("flatten requires an array")
		}
		var out []interface{}
		for _, v := range arr {
			if sub, ok := v.([]interface{}); ok {
				out = append(out, sub...)
			} else {
				out = append(out, v)
			}
		}
		return out, nil

	case "add":
		arr, ok := inner.([]interface{})
		if !ok {
			return nil, fmt.Errorf("add requires an array")
		}
		var sum float64
		for _, v := range arr {
			n, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("add requires a numeric array")
			}
			sum += n
		}
		return sum, nil
	}
	return nil, fmt.Errorf("unknown function %q", fn)
}

func stringifyQueryResult(v interface{}) string {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	case nil:
		return ""
	case string:
		return v.(string)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
