package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/evq/internal/kv"
	"github.com/roach88/evq/internal/queue"
	"github.com/roach88/evq/internal/store"
	"github.com/roach88/evq/internal/testutil"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEngine(t *testing.T, backend kv.Store, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithClock(testutil.NewSteppingClock()),
		WithHandleGenerator(NewSequentialGenerator("")),
	}
	e, err := New(backend, "test-queue", append(base, opts...)...)
	require.NoError(t, err)
	return e
}

// delivery is one recorded listener call.
type delivery struct {
	listener string
	data     queue.Payload
}

// recorder collects deliveries across listeners in call order.
type recorder struct {
	mu    sync.Mutex
	calls []delivery
}

func (r *recorder) listener(name string) Listener {
	return func(_ context.Context, data queue.Payload) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, delivery{listener: name, data: data})
		return nil
	}
}

func (r *recorder) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.calls...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func mustOn(t *testing.T, e *Engine, name string, l Listener) Disposer {
	t.Helper()
	d, err := e.On(name, l)
	require.NoError(t, err)
	return d
}
