package exprlang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paneflow-dev/paneflow/internal/varctx"
)

// falsyStrings is the truthiness falsy set for string values, compared lowercased.
var falsyStrings = map[string]bool{
	"": true, "false": true, "0": true, "null": true, "none": true,
}

// EvalError identifies the offending token range.
type EvalError struct {
	Message    string
	Start, End int
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s (offset %d-%d)", e.Message, e.Start, e.End)
}

// Evaluate interpolates expr through ctx, parses it, and evaluates it to a Value.
func Evaluate(ctx *varctx.Context, expr string) (varctx.Value, error) {
	interpolated := expr
	if ctx != nil {
		interpolated = ctx.Interpolate(expr)
	}
	node, err := Parse(interpolated)
	if err != nil {
		return varctx.Value{}, err
	}
	return eval(node, ctx)
}

// EvaluateString is a convenience wrapper returning the stringified result.
func EvaluateString(ctx *varctx.Context, expr string) (string, error) {
	v, err := Evaluate(ctx, expr)
	if err != nil {
		return "", err
	}
	return v.Stringify(), nil
}

// Truthy reports a value's truthiness: booleans as themselves, numbers as nonzero,
// strings as membership outside the falsy set.
func Truthy(v varctx.Value) bool {
	switch v.Kind {
	case varctx.KindBool:
		return v.Bool
	case varctx.KindNumber:
		return v.Num != 0
	case varctx.KindString:
		return !falsyStrings[strings.ToLower(v.Str)]
	case varctx.KindNull:
		return false
	default:
		// objects/arrays: truthy if non-empty.
		return len(v.Object) > 0 || len(v.Array) > 0
	}
}

func eval(n Node, ctx *varctx.Context) (varctx.Value, error) {
	switch node := n.(type) {
	case NumberLit:
		return varctx.Value{Kind: varctx.KindNumber, Num: node.Value}, nil
	case StringLit:
		return varctx.StringValue(node.Value), nil
	case BoolLit:
		return varctx.Value{Kind: varctx.KindBool, Bool: node.Value}, nil
	case Ident:
		// A bareword operand is resolved against the context first (so an expr of `out`
		// yields the value of variable `out`); only a name with no matching variable
		// falls back to being its own literal string value.
		if ctx != nil {
			if v, ok := ctx.Get(node.Name); ok {
				return v, nil
			}
		}
		return varctx.StringValue(node.Name), nil
	case Unary:
		v, err := eval(node.Operand, ctx)
		if err != nil {
			return varctx.Value{}, err
		}
		num, ok := asNumber(v)
		if !ok {
			return varctx.Value{}, fmt.Errorf("unary '-' requires a numeric operand, got %q", v.Stringify())
		}
		return varctx.Value{Kind: varctx.KindNumber, Num: -num}, nil
	case Not:
		v, err := eval(node.Operand, ctx)
		if err != nil {
			return varctx.Value{}, err
		}
		return varctx.Value{Kind: varctx.KindBool, Bool: !Truthy(v)}, nil
	case Binary:
		return evalBinary(node, ctx)
	case Conditional:
		condVal, err := eval(node.Cond, ctx)
		if err != nil {
			return varctx.Value{}, err
		}
		if Truthy(condVal) {
			return eval(node.Then, ctx)
		}
		return eval(node.Else, ctx)
	default:
		return varctx.Value{}, fmt.Errorf("unhandled node type %T", n)
	}
}

func asNumber(v varctx.Value) (float64, bool) {
	switch v.Kind {
	case varctx.KindNumber:
		return v.Num, true
	case varctx.KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case varctx.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func evalBinary(node Binary, ctx *varctx.Context) (varctx.Value, error) {
	switch node.Op {
	case "and":
		left, err := eval(node.Left, ctx)
		if err != nil {
			return varctx.Value{}, err
		}
		if !Truthy(left) {
			return varctx.Value{Kind: varctx.KindBool, Bool: false}, nil
		}
		right, err := eval(node.Right, ctx)
		if err != nil {
			return varctx.Value{}, err
		}
		return varctx.Value{Kind: varctx.KindBool, Bool: Truthy(right)}, nil
	case "or":
		left, err := eval(node.Left, ctx)
		if err != nil {
			return varctx.Value{}, err
		}
		if Truthy(left) {
			return varctx.Value{Kind: varctx.KindBool, Bool: true}, nil
		}
		right, err := eval(node.Right, ctx)
		if err != nil {
			return varctx.Value{}, err
		}
		return varctx.Value{Kind: varctx.KindBool, Bool: Truthy(right)}, nil
	}

	left, err := eval(node.Left, ctx)
	if err != nil {
		return varctx.Value{}, err
	}
	right, err := eval(node.Right, ctx)
	if err != nil {
		return varctx.Value{}, err
	}

	switch node.Op {
	case "+":
		if left.Kind == varctx.KindNumber && right.Kind == varctx.KindNumber {
			return varctx.Value{Kind: varctx.KindNumber, Num: left.Num + right.Num}, nil
		}
		return varctx.StringValue(left.Stringify() + right.Stringify()), nil
	case "-", "*", "/", "%":
		ln, lok := asNumber(left)
		rn, rok := asNumber(right)
		if !lok || !rok {
			return varctx.Value{}, fmt.Errorf("%q requires numeric operands, got %q and %q", node.Op, left.Stringify(), right.Stringify())
		}
		switch node.Op {
		case "-":
			return varctx.Value{Kind: varctx.KindNumber, Num: ln - rn}, nil
		case "*":
			return varctx.Value{Kind: varctx.KindNumber, Num: ln * rn}, nil
		case "/":
			if rn == 0 {
				return varctx.Value{}, fmt.Errorf("division by zero")
			}
			return varctx.Value{Kind: varctx.KindNumber, Num: ln / rn}, nil
		case "%":
			if rn == 0 {
				return varctx.Value{}, fmt.Errorf("modulo by zero")
			}
			return varctx.Value{Kind: varctx.KindNumber, Num: float64(int64(ln) % int64(rn))}, nil
		}
	case "==", "!=", ">", "<", ">=", "<=":
		return evalComparison(node.Op, left, right)
	}
	return varctx.Value{}, fmt.Errorf("unknown operator %q", node.Op)
}

func evalComparison(op string, left, right varctx.Value) (varctx.Value, error) {
	var cmp int
	ln, lok := asNumber(left)
	rn, rok := asNumber(right)
	if lok && rok {
		switch {
		case ln < rn:
			cmp = -1
		case ln > rn:
			cmp = 1
		default:
			cmp = 0
		}
	} else {
		ls, rs := left.Stringify(), right.Stringify()
		cmp = strings.Compare(ls, rs)
	}
	var result bool
	switch op {
	case "==":
		result = cmp == 0
	case "!=":
		result = cmp != 0
	case ">":
		result = cmp > 0
	case "<":
		result = cmp < 0
	case ">=":
		result = cmp >= 0
	case "<=":
		result = cmp <= 0
	}
	return varctx.Value{Kind: varctx.KindBool, Bool: result}, nil
}
