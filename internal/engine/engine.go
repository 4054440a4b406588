package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/evq/internal/kv"
	"github.com/roach88/evq/internal/queue"
)

// Engine is a durable event queue bound to one storage slot.
//
// Listener registry and polling loop are owned by the Engine value; several
// engines over different keys coexist independently.
type Engine struct {
	key     string
	store   *queue.Store
	clock   Clock
	handles HandleGenerator
	logger  *slog.Logger
	policy  queue.CorruptPolicy

	registry *registry
	seq      sequence

	// maxPerDrain caps dispatches per Drain call; 0 means unlimited.
	maxPerDrain int

	drainMu sync.Mutex

	pollMu   sync.Mutex
	poll     *poller
	pollDone chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp emitted items.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithHandleGenerator sets the generator for subscription handles.
func WithHandleGenerator(g HandleGenerator) Option {
	return func(e *Engine) {
		e.handles = g
	}
}

// WithCorruptPolicy sets how a stored blob that fails validation is treated.
//
// Default: queue.CorruptPolicyFail, so emits and drains report a
// *queue.CorruptStateError until the slot is repaired or cleared.
func WithCorruptPolicy(p queue.CorruptPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithMaxPerDrain caps how many items one Drain call dispatches. Items left
// over are picked up by the next call or tick.
//
// Default: 0 (unlimited).
func WithMaxPerDrain(n int) Option {
	return func(e *Engine) {
		e.maxPerDrain = n
	}
}

// New creates an Engine over the slot named key in backend.
//
// It fails with *UnsupportedEnvironmentError when backend is nil or, if the
// backend implements kv.Pinger, when Ping fails. The check happens here,
// not on first use.
func New(backend kv.Store, key string, opts ...Option) (*Engine, error) {
	if backend == nil {
		return nil, &UnsupportedEnvironmentError{Reason: "no persistent store available"}
	}
	if p, ok := backend.(kv.Pinger); ok {
		if err := p.Ping(context.Background()); err != nil {
			return nil, &UnsupportedEnvironmentError{Reason: "persistent store unreachable", Err: err}
		}
	}
	if strings.TrimSpace(key) == "" {
		return nil, &Error{Code: ErrCodeInvalidKey, Message: "storage key must be non-empty"}
	}

	e := &Engine{
		key:      key,
		clock:    SystemClock{},
		handles:  UUIDv7Generator{},
		logger:   slog.Default(),
		policy:   queue.CorruptPolicyFail,
		registry: newRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("queue", key)
	e.store = queue.NewStore(backend, key,
		queue.WithCorruptPolicy(e.policy),
		queue.WithStoreLogger(e.logger),
	)
	return e, nil
}

// Key returns the storage slot name.
func (e *Engine) Key() string {
	return e.key
}

// Store exposes the underlying queue store for inspection and maintenance.
func (e *Engine) Store() *queue.Store {
	return e.store
}

// Emit appends an event to the persisted queue.
//
// The name must be non-empty and is stored byte-for-byte; data may be nil. The
// item is stamped with the engine clock.
func (e *Engine) Emit(ctx context.Context, eventName string, data queue.Payload) error {
	name := eventName
	if err := checkEventName(name); err != nil {
		return err
	}

	item := queue.NewItem(name, data, e.clock.Now())
	if err := e.store.Append(ctx, item); err != nil {
		return fmt.Errorf("emit %q: %w", name, err)
	}

	e.logger.Debug("event emitted",
		"event", name,
		"issued_at", item.IssuedAt,
	)
	return nil
}

// On registers listener for eventName and returns its disposer.
//
// Listeners for one name run in registration order. Registering the same
// function twice creates two independent registrations.
func (e *Engine) On(eventName string, listener Listener) (Disposer, error) {
	name := eventName
	if err := checkEventName(name); err != nil {
		return nil, err
	}
	if listener == nil {
		return nil, &Error{Code: ErrCodeInvalidEvent, Message: "listener must be non-nil", Key: e.key, EventName: name}
	}

	sub := &subscription{
		id:        e.handles.Generate(),
		eventName: name,
		listener:  listener,
	}
	e.registry.add(sub)

	e.logger.Debug("listener registered",
		"event", name,
		"handle", sub.id,
	)

	var once sync.Once
	return func() {
		once.Do(func() {
			if e.registry.remove(name, sub.id) {
				e.logger.Debug("listener disposed",
					"event", name,
					"handle", sub.id,
				)
			}
		})
	}, nil
}

// Listeners returns how many registrations exist for eventName.
func (e *Engine) Listeners(eventName string) int {
	return e.registry.count(eventName)
}

// EventNames returns the names with at least one listener, in the order
// drains visit them.
func (e *Engine) EventNames() []string {
	return e.registry.names()
}

// Pending returns the persisted queue, oldest first.
func (e *Engine) Pending(ctx context.Context) ([]queue.Item, error) {
	st, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Queue, nil
}

// checkEventName rejects empty names. Names are otherwise opaque: matching
// compares bytes, so canonically equivalent spellings stay distinct.
func checkEventName(name string) error {
	if name == "" {
		return &Error{Code: ErrCodeInvalidEvent, Message: "event name must be non-empty"}
	}
	return nil
}
