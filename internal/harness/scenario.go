package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/evq/internal/queue"
)

// DefaultKey is the storage slot used when a scenario names none.
const DefaultKey = "scenario"

// Scenario defines a sequence of queue operations and the expectations on
// their outcome.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Key is the storage slot. Defaults to DefaultKey.
	Key string `yaml:"key,omitempty"`

	// CorruptPolicy is "fail" (default) or "reset".
	CorruptPolicy string `yaml:"corrupt_policy,omitempty"`

	// MaxPerDrain caps dispatches per drain step. 0 = unlimited.
	MaxPerDrain int `yaml:"max_per_drain,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final queue.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is exactly one operation. Only one field may be set.
type Step struct {
	On      *OnStep      `yaml:"on,omitempty"`
	Dispose *DisposeStep `yaml:"dispose,omitempty"`
	Emit    *EmitStep    `yaml:"emit,omitempty"`
	Drain   *DrainStep   `yaml:"drain,omitempty"`
	Restart bool         `yaml:"restart,omitempty"`
	Corrupt *CorruptStep `yaml:"corrupt,omitempty"`
}

// OnStep registers a recording listener.
type OnStep struct {
	Event    string `yaml:"event"`
	Listener string `yaml:"listener"`

	// Fail, if set, is returned as the listener's error after recording.
	Fail string `yaml:"fail,omitempty"`

	// Emit, if set, is emitted by the listener after recording.
	Emit *EmitStep `yaml:"emit,omitempty"`
}

// DisposeStep revokes the most recent registration with Listener's label.
type DisposeStep struct {
	Listener string `yaml:"listener"`
}

// EmitStep stores one event.
type EmitStep struct {
	Event string         `yaml:"event"`
	Data  map[string]any `yaml:"data,omitempty"`

	// ExpectError, if set, must be a substring of the emit error.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// DrainStep runs one drain to quiescence.
type DrainStep struct {
	// Expect, if set, is the number of items the drain must dispatch.
	Expect *int `yaml:"expect,omitempty"`

	// ExpectError, if set, must be a substring of the drain error.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// CorruptStep overwrites the stored blob.
type CorruptStep struct {
	Blob string `yaml:"blob"`
}

// Assertion validates the trace or the final queue.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Listener filters deliveries by label (delivered, not_delivered,
	// delivered_count).
	Listener string `yaml:"listener,omitempty"`

	// Event filters deliveries by event name.
	Event string `yaml:"event,omitempty"`

	// Data filters deliveries by payload (subset match).
	Data map[string]any `yaml:"data,omitempty"`

	// Count is the expected number of matching deliveries.
	Count int `yaml:"count,omitempty"`

	// Events is the expected remaining queue (remaining).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertDelivered      = "delivered"
	AssertNotDelivered   = "not_delivered"
	AssertDeliveredCount = "delivered_count"
	AssertRemaining      = "remaining"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := queue.ParseCorruptPolicy(s.CorruptPolicy); err != nil {
		return err
	}
	if s.MaxPerDrain < 0 {
		return fmt.Errorf("max_per_drain must be >= 0")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	set := 0
	if step.On != nil {
		set++
		if step.On.Event == "" || step.On.Listener == "" {
			return fmt.Errorf("on: event and listener are required")
		}
		if step.On.Emit != nil && step.On.Emit.Event == "" {
			return fmt.Errorf("on: emit.event is required")
		}
	}
	if step.Dispose != nil {
		set++
		if step.Dispose.Listener == "" {
			return fmt.Errorf("dispose: listener is required")
		}
	}
	if step.Emit != nil {
		set++
		if step.Emit.Event == "" {
			return fmt.Errorf("emit: event is required")
		}
	}
	if step.Drain != nil {
		set++
	}
	if step.Restart {
		set++
	}
	if step.Corrupt != nil {
		set++
	}

	switch set {
	case 0:
		return fmt.Errorf("step is empty (use one of on, dispose, emit, drain, restart, corrupt)")
	case 1:
		return nil
	default:
		return fmt.Errorf("step sets %d operations, want exactly one", set)
	}
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertDelivered, AssertNotDelivered:
	case AssertDeliveredCount:
		if a.Count < 0 {
			return fmt.Errorf("delivered_count: count must be >= 0")
		}
	case AssertRemaining:
		if a.Listener != "" || a.Event != "" || a.Data != nil {
			return fmt.Errorf("remaining: only events may be set")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
