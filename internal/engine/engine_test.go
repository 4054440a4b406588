package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evq/internal/kv"
	"github.com/roach88/evq/internal/queue"
)

type unreachableKV struct{}

func (unreachableKV) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (unreachableKV) Set(context.Context, string, string) error         { return nil }
func (unreachableKV) Ping(context.Context) error                        { return errors.New("disk gone") }

func TestNew_NilStore(t *testing.T) {
	_, err := New(nil, "q")
	require.Error(t, err)
	assert.True(t, IsUnsupportedEnvironment(err))
}

func TestNew_UnreachableStore(t *testing.T) {
	_, err := New(unreachableKV{}, "q")
	require.Error(t, err)
	assert.True(t, IsUnsupportedEnvironment(err))
	assert.Contains(t, err.Error(), "disk gone")
}

func TestNew_ClosedStore(t *testing.T) {
	m := kv.NewMemory()
	require.NoError(t, m.Close())

	_, err := New(m, "q")
	assert.True(t, IsUnsupportedEnvironment(err))
	assert.ErrorIs(t, err, kv.ErrClosed)
}

func TestNew_EmptyKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		_, err := New(kv.NewMemory(), key)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, ErrCodeInvalidKey, e.Code)
	}
}

func TestNew_Defaults(t *testing.T) {
	e, err := New(kv.NewMemory(), "q")
	require.NoError(t, err)

	assert.Equal(t, "q", e.Key())
	assert.IsType(t, SystemClock{}, e.clock)
	assert.IsType(t, UUIDv7Generator{}, e.handles)
	assert.Equal(t, queue.CorruptPolicyFail, e.Store().Policy())
	assert.Equal(t, 0, e.maxPerDrain)
	assert.False(t, e.Running())
}

func TestEmit_PersistsItem(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	e := newTestEngine(t, backend)

	require.NoError(t, e.Emit(ctx, "hello", queue.Payload{"world": true}))
	require.NoError(t, e.Emit(ctx, "bye", nil))

	blob, ok, err := backend.Get(ctx, "test-queue")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t,
		`{"queue":[{"eventName":"hello","issuedAt":"2024-01-01T00:00:00.000Z","data":{"world":true}},`+
			`{"eventName":"bye","issuedAt":"2024-01-01T00:00:01.000Z"}]}`,
		blob)
}

func TestEmit_EmptyName(t *testing.T) {
	e := newTestEngine(t, kv.NewMemory())

	err := e.Emit(context.Background(), "", nil)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeInvalidEvent, ee.Code)
}

func TestEmit_NamesMatchByteForByte(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	e := newTestEngine(t, backend)
	composed, decomposed := &recorder{}, &recorder{}

	// "é" precomposed vs. "e" + combining acute
	mustOn(t, e, "caf\u00e9", composed.listener("composed"))
	require.NoError(t, e.Emit(ctx, "cafe\u0301", map[string]any{"n": 1}))

	items, err := e.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "cafe\u0301", items[0].EventName)

	n, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, composed.all())
	assert.Equal(t, 0, e.Listeners("cafe\u0301"))

	mustOn(t, e, "cafe\u0301", decomposed.listener("decomposed"))
	n, err = e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, decomposed.all(), 1)
	assert.Empty(t, composed.all())
}

func TestDrain_MatchesNonNFCNameWrittenElsewhere(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, "test-queue",
		`{"queue":[{"eventName":"e\u0301","issuedAt":"2024-01-01T00:00:00.000Z"}]}`))
	e := newTestEngine(t, backend)
	rec := &recorder{}
	mustOn(t, e, "e\u0301", rec.listener("l"))

	n, err := e.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, rec.all(), 1)

	items, err := e.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEmit_CorruptStateFails(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, "test-queue", `{"queue":[{"eventName":42}]}`))
	e := newTestEngine(t, backend)

	err := e.Emit(ctx, "x", nil)
	require.Error(t, err)
	assert.True(t, queue.IsCorrupt(err))
}

func TestEmit_CorruptStateReset(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	require.NoError(t, backend.Set(ctx, "test-queue", `not json`))
	e := newTestEngine(t, backend, WithCorruptPolicy(queue.CorruptPolicyReset))

	require.NoError(t, e.Emit(ctx, "x", nil))
	items, err := e.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].EventName)
}

func TestOn_Validation(t *testing.T) {
	e := newTestEngine(t, kv.NewMemory())

	_, err := e.On("", func(context.Context, queue.Payload) error { return nil })
	assert.Error(t, err)

	_, err = e.On("x", nil)
	assert.Error(t, err)
}

func TestPending_Empty(t *testing.T) {
	e := newTestEngine(t, kv.NewMemory())

	items, err := e.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEngines_IsolatedByKey(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()

	a, err := New(backend, "a")
	require.NoError(t, err)
	b, err := New(backend, "b")
	require.NoError(t, err)

	recA, recB := &recorder{}, &recorder{}
	mustOn(t, a, "x", recA.listener("a"))
	mustOn(t, b, "x", recB.listener("b"))

	require.NoError(t, a.Emit(ctx, "x", nil))

	_, err = b.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, recB.len())

	_, err = a.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recA.len())
}
