package queue

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled CEL predicate over stored items. The zero Filter
// matches everything.
//
// Expressions see:
//
//	eventName  string
//	issuedAt   string
//	index      int     position in the queue, oldest is 0
//	data       dyn     the payload, {} when absent
type Filter struct {
	prog    cel.Program
	enabled bool
	expr    string
}

// CompileFilter compiles expr. A blank expression yields the match-all filter.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("eventName", cel.StringType),
		cel.Variable("issuedAt", cel.StringType),
		cel.Variable("index", cel.IntType),
		cel.Variable("data", cel.DynType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	if !ast.OutputType().IsAssignableType(cel.BoolType) {
		return Filter{}, &filterTypeError{expr: expr, got: ast.OutputType().String()}
	}
	prog, err := env.Program(ast)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true, expr: expr}, nil
}

// String returns the source expression.
func (f Filter) String() string {
	return f.expr
}

// Match evaluates the filter for the item at position i. Evaluation errors
// and non-boolean results count as no match.
func (f Filter) Match(i int, it Item) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"eventName": it.EventName,
		"issuedAt":  it.IssuedAt,
		"index":     int64(i),
		"data":      plainData(it.Data),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// plainData converts json.Number leaves into float64 so CEL can compare them.
func plainData(p Payload) map[string]any {
	if len(p) == 0 {
		return map[string]any{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{}
	}
	return out
}

type filterTypeError struct {
	expr string
	got  string
}

func (e *filterTypeError) Error() string {
	return "filter " + e.expr + " must evaluate to bool, got " + e.got
}
