package harness

import "github.com/roach88/evq/internal/queue"

// Trace event types.
const (
	TraceOn      = "on"
	TraceDispose = "dispose"
	TraceEmit    = "emit"
	TraceDeliver = "deliver"
	TraceDrain   = "drain"
	TraceRestart = "restart"
	TraceCorrupt = "corrupt"
)

// TraceEvent is one observable step of a scenario run.
type TraceEvent struct {
	Seq        int64         `json:"seq"`
	Type       string        `json:"type"`
	Event      string        `json:"event,omitempty"`
	Listener   string        `json:"listener,omitempty"`
	Data       queue.Payload `json:"data,omitempty"`
	Dispatched *int          `json:"dispatched,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps and deliveries in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Remaining is the event names left in the queue after the last step.
	Remaining []string `json:"remaining"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Remaining: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Deliveries returns the deliver events of the trace.
func (r *Result) Deliveries() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == TraceDeliver {
			out = append(out, ev)
		}
	}
	return out
}
