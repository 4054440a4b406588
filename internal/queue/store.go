package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/evq/internal/kv"
)

// CorruptPolicy decides what Load does with a blob that fails validation.
type CorruptPolicy int

const (
	// CorruptPolicyFail returns a *CorruptStateError and leaves the slot
	// untouched.
	CorruptPolicyFail CorruptPolicy = iota
	// CorruptPolicyReset logs a warning and treats the slot as empty. The
	// corrupt blob is overwritten by the next save.
	CorruptPolicyReset
)

// ParseCorruptPolicy maps "fail" or "reset" to a policy. Empty means fail.
func ParseCorruptPolicy(s string) (CorruptPolicy, error) {
	switch s {
	case "", "fail":
		return CorruptPolicyFail, nil
	case "reset":
		return CorruptPolicyReset, nil
	default:
		return CorruptPolicyFail, fmt.Errorf("unknown corrupt policy %q (want fail or reset)", s)
	}
}

func (p CorruptPolicy) String() string {
	if p == CorruptPolicyReset {
		return "reset"
	}
	return "fail"
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCorruptPolicy sets how invalid blobs are handled. Default: fail.
func WithCorruptPolicy(p CorruptPolicy) StoreOption {
	return func(s *Store) {
		s.policy = p
	}
}

// WithStoreLogger sets the logger used for policy warnings.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// Store reads and writes the queue held in one kv slot.
//
// Read-modify-write operations (Append, Remove, Purge) hold an internal
// mutex, so callers sharing a *Store never interleave inside one update.
// Separate Store values over the same slot are not coordinated.
type Store struct {
	kv     kv.Store
	key    string
	policy CorruptPolicy
	logger *slog.Logger

	mu sync.Mutex
}

// NewStore creates a Store over the slot named key.
func NewStore(backend kv.Store, key string, opts ...StoreOption) *Store {
	s := &Store{
		kv:     backend,
		key:    key,
		policy: CorruptPolicyFail,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the slot name.
func (s *Store) Key() string {
	return s.key
}

// Policy returns the corrupt-state policy in effect.
func (s *Store) Policy() CorruptPolicy {
	return s.policy
}

// Load reads the current state.
func (s *Store) Load(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save replaces the persisted state.
func (s *Store) Save(ctx context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, st)
}

// Append adds item to the end of the queue.
func (s *Store) Append(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	st.Queue = append(st.Queue, item)
	return s.save(ctx, st)
}

// Remove splices out the oldest item named eventName and persists the rest.
// It reports false, without writing, when no item matches.
func (s *Store) Remove(ctx context.Context, eventName string) (Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return Item{}, false, err
	}
	idx := st.IndexOf(eventName)
	if idx < 0 {
		return Item{}, false, nil
	}
	item := st.Queue[idx]
	if err := s.save(ctx, st.without(idx)); err != nil {
		return Item{}, false, err
	}
	return item, true, nil
}

// List returns the stored items accepted by f, oldest first. A zero Filter
// accepts everything.
func (s *Store) List(ctx context.Context, f Filter) ([]Item, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(st.Queue))
	for i, it := range st.Queue {
		if f.Match(i, it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Purge drops every item accepted by f and returns how many were removed.
func (s *Store) Purge(ctx context.Context, f Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]Item, 0, len(st.Queue))
	for i, it := range st.Queue {
		if !f.Match(i, it) {
			kept = append(kept, it)
		}
	}
	removed := len(st.Queue) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(ctx, State{Queue: kept}); err != nil {
		return 0, err
	}
	return removed, nil
}

// Clear overwrites the slot with the empty state without validating the old
// blob, so it also repairs a corrupt slot. It returns how many items the old
// state held; a corrupt or absent slot counts as zero.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return 0, fmt.Errorf("read slot %q: %w", s.key, err)
	}
	n := 0
	if ok {
		st, err := Decode(blob)
		if err != nil {
			s.logger.Warn("clearing corrupt queue state",
				"key", s.key,
				"error", err,
			)
		} else {
			n = st.Len()
		}
	}
	if err := s.save(ctx, EmptyState()); err != nil {
		return 0, err
	}
	return n, nil
}

// Check validates the stored blob regardless of policy. It returns nil for
// an absent slot.
func (s *Store) Check(ctx context.Context) error {
	blob, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("read slot %q: %w", s.key, err)
	}
	if !ok {
		return nil
	}
	if _, err := Decode(blob); err != nil {
		return &CorruptStateError{Key: s.key, Err: err}
	}
	return nil
}

func (s *Store) load(ctx context.Context) (State, error) {
	blob, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return State{}, fmt.Errorf("read slot %q: %w", s.key, err)
	}
	if !ok {
		return EmptyState(), nil
	}

	st, err := Decode(blob)
	if err == nil {
		return st, nil
	}
	if s.policy == CorruptPolicyReset {
		s.logger.Warn("discarding corrupt queue state",
			"key", s.key,
			"error", err,
		)
		return EmptyState(), nil
	}
	return State{}, &CorruptStateError{Key: s.key, Err: err}
}

func (s *Store) save(ctx context.Context, st State) error {
	blob, err := Encode(st)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, blob); err != nil {
		return fmt.Errorf("write slot %q: %w", s.key, err)
	}
	return nil
}
