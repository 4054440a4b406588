package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/evq/internal/engine"
	"github.com/roach88/evq/internal/kv"
	"github.com/roach88/evq/internal/queue"
	"github.com/roach88/evq/internal/testutil"
)

// Harness drives one scenario against a real engine.
type Harness struct {
	scenario *Scenario
	key      string
	backend  *kv.Memory
	engine   *engine.Engine
	clock    *testutil.SteppingClock
	handles  *engine.SequentialGenerator
	logger   *slog.Logger
	result   *Result
	seq      int64

	// disposers holds registrations per label, most recent last.
	disposers map[string][]engine.Disposer
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh in-memory store. The returned error reports a
// harness failure (the engine could not be built); scenario failures are
// reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	key := scenario.Key
	if key == "" {
		key = DefaultKey
	}

	h := &Harness{
		scenario:  scenario,
		key:       key,
		backend:   kv.NewMemory(),
		clock:     testutil.NewSteppingClock(),
		handles:   engine.NewSequentialGenerator(""),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:    NewResult(),
		disposers: make(map[string][]engine.Disposer),
	}
	if err := h.boot(); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	h.collectRemaining(ctx)

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// boot (re)creates the engine over the shared backend.
func (h *Harness) boot() error {
	policy, err := queue.ParseCorruptPolicy(h.scenario.CorruptPolicy)
	if err != nil {
		return err
	}
	eng, err := engine.New(h.backend, h.key,
		engine.WithClock(h.clock),
		engine.WithHandleGenerator(h.handles),
		engine.WithLogger(h.logger),
		engine.WithCorruptPolicy(policy),
		engine.WithMaxPerDrain(h.scenario.MaxPerDrain),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	h.engine = eng
	h.disposers = make(map[string][]engine.Disposer)
	return nil
}

func (h *Harness) trace(ev TraceEvent) {
	h.seq++
	ev.Seq = h.seq
	h.result.Trace = append(h.result.Trace, ev)
}

func (h *Harness) execute(ctx context.Context, i int, step Step) error {
	switch {
	case step.On != nil:
		return h.on(i, *step.On)
	case step.Dispose != nil:
		h.dispose(i, *step.Dispose)
	case step.Emit != nil:
		h.emit(ctx, i, *step.Emit)
	case step.Drain != nil:
		h.drain(ctx, i, *step.Drain)
	case step.Restart:
		h.trace(TraceEvent{Type: TraceRestart})
		return h.boot()
	case step.Corrupt != nil:
		h.trace(TraceEvent{Type: TraceCorrupt})
		return h.backend.Set(ctx, h.key, step.Corrupt.Blob)
	}
	return nil
}

func (h *Harness) on(i int, step OnStep) error {
	dispose, err := h.engine.On(step.Event, h.listener(step))
	if err != nil {
		return err
	}
	h.disposers[step.Listener] = append(h.disposers[step.Listener], dispose)
	h.trace(TraceEvent{Type: TraceOn, Event: step.Event, Listener: step.Listener})
	h.logger.Info("listener registered", "step", i, "event", step.Event, "listener", step.Listener)
	return nil
}

// listener records each delivery, then performs the step's side effects.
// It reads h.engine at call time so follow-up emits go to the live engine.
func (h *Harness) listener(step OnStep) engine.Listener {
	return func(ctx context.Context, data queue.Payload) error {
		h.trace(TraceEvent{
			Type:     TraceDeliver,
			Event:    step.Event,
			Listener: step.Listener,
			Data:     data,
		})
		if step.Emit != nil {
			if err := h.engine.Emit(ctx, step.Emit.Event, step.Emit.Data); err != nil {
				return err
			}
		}
		if step.Fail != "" {
			return errors.New(step.Fail)
		}
		return nil
	}
}

func (h *Harness) dispose(i int, step DisposeStep) {
	stack := h.disposers[step.Listener]
	h.trace(TraceEvent{Type: TraceDispose, Listener: step.Listener})
	if len(stack) == 0 {
		h.result.AddError(fmt.Sprintf("step %d: dispose: no registration labelled %q", i, step.Listener))
		return
	}
	stack[len(stack)-1]()
	h.disposers[step.Listener] = stack[:len(stack)-1]
}

func (h *Harness) emit(ctx context.Context, i int, step EmitStep) {
	err := h.engine.Emit(ctx, step.Event, step.Data)
	ev := TraceEvent{Type: TraceEmit, Event: step.Event, Data: step.Data}
	if err != nil {
		ev.Error = err.Error()
	}
	h.trace(ev)
	h.checkError(fmt.Sprintf("step %d: emit %q", i, step.Event), err, step.ExpectError)
}

func (h *Harness) drain(ctx context.Context, i int, step DrainStep) {
	n, err := h.engine.Drain(ctx)
	ev := TraceEvent{Type: TraceDrain, Dispatched: &n}
	if err != nil {
		ev.Error = err.Error()
	}
	h.trace(ev)

	label := fmt.Sprintf("step %d: drain", i)
	if step.Expect != nil && *step.Expect != n {
		h.result.AddError(fmt.Sprintf("%s: dispatched %d, want %d", label, n, *step.Expect))
	}
	h.checkError(label, err, step.ExpectError)
}

func (h *Harness) checkError(label string, err error, want string) {
	switch {
	case want == "" && err != nil:
		h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, err))
	case want != "" && err == nil:
		h.result.AddError(fmt.Sprintf("%s: expected error containing %q, got none", label, want))
	case want != "" && !strings.Contains(err.Error(), want):
		h.result.AddError(fmt.Sprintf("%s: error %q does not contain %q", label, err, want))
	}
}

func (h *Harness) collectRemaining(ctx context.Context) {
	items, err := h.engine.Pending(ctx)
	if err != nil {
		h.result.AddError(fmt.Sprintf("final state unreadable: %v", err))
		return
	}
	for _, it := range items {
		h.result.Remaining = append(h.result.Remaining, it.EventName)
	}
}
