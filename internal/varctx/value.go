// Package varctx implements the execution context: a typed variable store plus
// {name.path.0.field} placeholder interpolation with JSON-decode-on-demand descent and
// size-aware externalization to files.
package varctx

import (
	"encoding/json"
	"strconv"
)

// Kind tags the dynamic type of a Value — variables are stored as a tagged sum type
// rather than bare interface{} with implicit JSON decoding on every access.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// Value is a tagged variable value.
type Value struct {
	Kind   Kind
	Str    string
	Num    float64
	Bool   bool
	Object map[string]interface{}
	Array  []interface{}
}

// StringValue wraps a plain string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// FromAny converts a decoded JSON value (as produced by encoding/json, or raw Go
// literals) into a tagged Value.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case string:
		return Value{Kind: KindString, Str: t}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case float64:
		return Value{Kind: KindNumber, Num: t}
	case int:
		return Value{Kind: KindNumber, Num: float64(t)}
	case map[string]interface{}:
		return Value{Kind: KindObject, Object: t}
	case []interface{}:
		return Value{Kind: KindArray, Array: t}
	default:
		// Fallback: round-trip through JSON to normalize exotic types (e.g. map[interface{}]interface{}
		// from a YAML decode that bypassed yaml.v3's string-keyed map mode).
		b, err := json.Marshal(v)
		if err != nil {
			return Value{Kind: KindString, Str: ""}
		}
		var generic interface{}
		if err := json.Unmarshal(b, &generic); err != nil {
			return Value{Kind: KindString, Str: ""}
		}
		return FromAny(generic)
	}
}

// Raw returns the plain interface{} this Value wraps, for JSON re-serialization.
func (v Value) Raw() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	case KindObject:
		return v.Object
	case KindArray:
		return v.Array
	default:
		return nil
	}
}

// IsContainer reports whether this value is an object or array.
func (v Value) IsContainer() bool { return v.Kind == KindObject || v.Kind == KindArray }

// Stringify renders a Value as it should appear substituted into a template: containers
// serialize to JSON; scalars stringify directly (booleans as true/false, numbers
// canonicalized integer-without-decimal-point or float otherwise).
func (v Value) Stringify() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindString:
		return v.Str
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindObject, KindArray:
		b, err := json.Marshal(v.Raw())
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
