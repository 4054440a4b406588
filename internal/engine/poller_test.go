package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evq/internal/kv"
	"github.com/roach88/evq/internal/queue"
)

const (
	testInterval = 5 * time.Millisecond
	waitFor      = 2 * time.Second
	tickFor      = 5 * time.Millisecond
)

// lockedBuffer is a bytes.Buffer safe for the poller goroutine and the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStart_DeliversOnTick(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, kv.NewMemory())
	rec := &recorder{}
	mustOn(t, e, "hello", rec.listener("fn"))

	stop, err := e.Start(ctx, testInterval)
	require.NoError(t, err)
	defer stop()
	assert.True(t, e.Running())

	require.NoError(t, e.Emit(ctx, "hello", queue.Payload{"world": true}))

	require.Eventually(t, func() bool { return rec.len() == 1 }, waitFor, tickFor)
	assert.Equal(t, queue.Payload{"world": true}, rec.all()[0].data)

	require.Eventually(t, func() bool {
		items, err := e.Pending(ctx)
		return err == nil && len(items) == 0
	}, waitFor, tickFor)
}

func TestStart_DrainsItemsEmittedBeforeStart(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, kv.NewMemory())
	rec := &recorder{}
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Emit(ctx, "job", nil))
	}
	mustOn(t, e, "job", rec.listener("w"))

	stop, err := e.Start(ctx, testInterval)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool { return rec.len() == 3 }, waitFor, tickFor)
}

func TestStart_SecondStartFails(t *testing.T) {
	e := newTestEngine(t, kv.NewMemory())

	stop, err := e.Start(context.Background(), testInterval)
	require.NoError(t, err)
	defer stop()

	again, err := e.Start(context.Background(), testInterval)
	assert.Nil(t, again)
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeAlreadyStarted, ee.Code)
}

func TestStart_StopIsIdempotent(t *testing.T) {
	e := newTestEngine(t, kv.NewMemory())

	stop, err := e.Start(context.Background(), testInterval)
	require.NoError(t, err)

	stop()
	stop()
	e.Wait()
	assert.False(t, e.Running())
}

func TestStart_NoDeliveryAfterStop(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, kv.NewMemory())
	rec := &recorder{}
	mustOn(t, e, "x", rec.listener("l"))

	stop, err := e.Start(ctx, testInterval)
	require.NoError(t, err)
	stop()
	e.Wait()

	require.NoError(t, e.Emit(ctx, "x", nil))
	time.Sleep(10 * testInterval)
	assert.Equal(t, 0, rec.len())

	items, err := e.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStart_RestartAfterStop(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, kv.NewMemory())
	rec := &recorder{}
	mustOn(t, e, "x", rec.listener("l"))

	stop, err := e.Start(ctx, testInterval)
	require.NoError(t, err)
	stop()
	e.Wait()

	stop, err = e.Start(ctx, testInterval)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, e.Emit(ctx, "x", nil))
	require.Eventually(t, func() bool { return rec.len() == 1 }, waitFor, tickFor)
}

func TestStart_ContextCancelStopsLoop(t *testing.T) {
	e := newTestEngine(t, kv.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())

	stop, err := e.Start(ctx, testInterval)
	require.NoError(t, err)
	defer stop()

	cancel()
	e.Wait()
	assert.False(t, e.Running())

	// A fresh loop may start once the cancelled one has exited.
	stop2, err := e.Start(context.Background(), testInterval)
	require.NoError(t, err)
	stop2()
}

func TestStart_DefaultInterval(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, kv.NewMemory())
	rec := &recorder{}
	mustOn(t, e, "x", rec.listener("l"))

	stop, err := e.Start(ctx, 0)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, e.Emit(ctx, "x", nil))
	require.Eventually(t, func() bool { return rec.len() == 1 }, waitFor, 10*time.Millisecond)
}

func TestStart_InFlightTickCompletes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, kv.NewMemory())

	entered := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	mustOn(t, e, "slow", func(ctx context.Context, _ queue.Payload) error {
		close(entered)
		<-release
		if ctx.Err() != nil {
			return ctx.Err()
		}
		close(finished)
		return nil
	})
	require.NoError(t, e.Emit(ctx, "slow", nil))

	stop, err := e.Start(ctx, testInterval)
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("listener was never invoked")
	}

	stop()
	close(release)
	e.Wait()

	select {
	case <-finished:
	default:
		t.Fatal("in-flight listener saw a cancelled context")
	}
}

func TestStart_StoppedLoopFinishingTickBlocksRestart(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, kv.NewMemory())

	entered := make(chan struct{})
	release := make(chan struct{})
	mustOn(t, e, "slow", func(context.Context, queue.Payload) error {
		close(entered)
		<-release
		return nil
	})
	require.NoError(t, e.Emit(ctx, "slow", nil))

	stop, err := e.Start(ctx, testInterval)
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("listener was never invoked")
	}

	stop()
	assert.True(t, e.Running(), "loop is alive until its drain returns")
	_, err = e.Start(ctx, testInterval)
	require.ErrorIs(t, err, ErrAlreadyStarted)

	close(release)
	e.Wait()
	assert.False(t, e.Running())

	stop, err = e.Start(ctx, testInterval)
	require.NoError(t, err)
	stop()
	e.Wait()
}

func TestStart_TickErrorsAreLoggedAndPollingContinues(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemory()
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := newTestEngine(t, backend, WithLogger(logger))

	var failures int
	var mu sync.Mutex
	mustOn(t, e, "x", func(context.Context, queue.Payload) error {
		mu.Lock()
		defer mu.Unlock()
		failures++
		return errors.New("listener exploded")
	})
	require.NoError(t, e.Emit(ctx, "x", nil))

	stop, err := e.Start(ctx, testInterval)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "drain tick failed")
	}, waitFor, tickFor)

	require.NoError(t, e.Emit(ctx, "x", nil))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return failures == 2
	}, waitFor, tickFor)

	assert.Contains(t, logs.String(), "listener exploded")
	assert.Contains(t, logs.String(), "queue=test-queue")
}

func TestWait_WithoutStart(t *testing.T) {
	e := newTestEngine(t, kv.NewMemory())
	e.Wait()
	assert.False(t, e.Running())
}
