// Package condeval evaluates step guards (when) and loop predicates (until, while):
// a thin adapter over internal/exprlang and internal/varctx.
package condeval

import (
	"fmt"

	"github.com/paneflow-dev/paneflow/internal/exprlang"
	"github.com/paneflow-dev/paneflow/internal/varctx"
)

// Result is the outcome of evaluating a condition.
type Result struct {
	Satisfied bool
	// Reason is the fully interpolated condition text, used by the display layer to
	// humanize skip reasons (e.g. "0 != 0 AND 1 < 3").
	Reason string
}

// ConditionError marks a malformed condition or expression.
type ConditionError struct {
	Condition string
	Err       error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("invalid condition %q: %v", e.Condition, e.Err)
}

func (e *ConditionError) Unwrap() error { return e.Err }

// Evaluate interpolates condition through ctx, evaluates it via exprlang, and coerces the
// result to a boolean using exprlang's truthiness rules.
func Evaluate(ctx *varctx.Context, condition string) (Result, error) {
	interpolated := condition
	if ctx != nil {
		interpolated = ctx.Interpolate(condition)
	}
	v, err := exprlang.Evaluate(ctx, condition)
	if err != nil {
		return Result{}, &ConditionError{Condition: condition, Err: err}
	}
	return Result{Satisfied: exprlang.Truthy(v), Reason: interpolated}, nil
}
