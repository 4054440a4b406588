package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	deliveries := 0
	fmt.Fprintf(&buf, "\nDeliveries:\n")
	for _, ev := range e.Trace {
		if ev.Type == TraceDeliver {
			deliveries++
			fmt.Fprintf(&buf, "  [%d] %s <- %s %v\n", ev.Seq, ev.Listener, ev.Event, ev.Data)
		}
	}
	if deliveries == 0 {
		fmt.Fprintf(&buf, "  (none)\n")
	}
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result and
// returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertDelivered:
			err = assertDelivered(result, a)
		case AssertNotDelivered:
			err = assertNotDelivered(result, a)
		case AssertDeliveredCount:
			err = assertDeliveredCount(result, a)
		case AssertRemaining:
			err = assertRemaining(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertDelivered(result *Result, a Assertion) error {
	if countMatches(result, a) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertDelivered,
		Expected: describe(a),
		Actual:   "no matching delivery",
		Trace:    result.Trace,
	}
}

func assertNotDelivered(result *Result, a Assertion) error {
	n := countMatches(result, a)
	if n == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNotDelivered,
		Expected: "no delivery " + describe(a),
		Actual:   fmt.Sprintf("%d matching deliveries", n),
		Trace:    result.Trace,
	}
}

func assertDeliveredCount(result *Result, a Assertion) error {
	n := countMatches(result, a)
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertDeliveredCount,
		Expected: fmt.Sprintf("%d deliveries %s", a.Count, describe(a)),
		Actual:   fmt.Sprintf("%d", n),
		Trace:    result.Trace,
	}
}

func assertRemaining(result *Result, a Assertion) error {
	want := a.Events
	if want == nil {
		want = []string{}
	}
	if reflect.DeepEqual(want, result.Remaining) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRemaining,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", result.Remaining),
		Trace:    result.Trace,
	}
}

func countMatches(result *Result, a Assertion) int {
	n := 0
	for _, ev := range result.Deliveries() {
		if a.Listener != "" && ev.Listener != a.Listener {
			continue
		}
		if a.Event != "" && ev.Event != a.Event {
			continue
		}
		if !matchData(ev.Data, a.Data) {
			continue
		}
		n++
	}
	return n
}

func describe(a Assertion) string {
	var parts []string
	if a.Listener != "" {
		parts = append(parts, "listener="+a.Listener)
	}
	if a.Event != "" {
		parts = append(parts, "event="+a.Event)
	}
	if len(a.Data) > 0 {
		parts = append(parts, fmt.Sprintf("data=%v", a.Data))
	}
	if len(parts) == 0 {
		return "(any)"
	}
	return strings.Join(parts, " ")
}

// matchData checks that actual contains every key of expected with an equal
// value (subset match). Extra keys in actual are ignored.
func matchData(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares after normalizing numbers: payloads read back from
// the store carry json.Number, YAML carries int or float64.
func valuesEqual(actual, expected any) bool {
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
