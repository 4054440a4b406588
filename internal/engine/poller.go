package engine

import (
	"context"
	"time"
)

// DefaultPollInterval is used by Start when interval <= 0.
const DefaultPollInterval = 100 * time.Millisecond

// StopFunc halts a polling loop. It is idempotent and does not block: a
// drain already running finishes, and no later tick starts a new one. The
// loop counts as running until that drain returns; use Engine.Wait to block
// on it.
type StopFunc func()

type poller struct {
	done chan struct{}
}

// Start runs Drain every interval until the returned StopFunc is called or
// ctx is cancelled.
//
// Only one loop may run per Engine; a second Start before the first has
// exited (including a stopped loop finishing its last drain) returns
// ErrAlreadyStarted. Drain errors are logged and polling continues.
func (e *Engine) Start(ctx context.Context, interval time.Duration) (StopFunc, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	if e.poll != nil {
		return nil, ErrAlreadyStarted
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &poller{done: make(chan struct{})}
	e.poll = p
	e.pollDone = p.done

	e.logger.Info("polling started", "interval", interval)
	go e.runPoller(pctx, p, interval)

	return StopFunc(cancel), nil
}

// Running reports whether a polling loop is active.
func (e *Engine) Running() bool {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	return e.poll != nil
}

// Wait blocks until the most recently started polling loop has exited,
// including any drain it was running when stopped. It returns at once if
// Start was never called.
func (e *Engine) Wait() {
	e.pollMu.Lock()
	done := e.pollDone
	e.pollMu.Unlock()
	if done != nil {
		<-done
	}
}

func (e *Engine) runPoller(ctx context.Context, p *poller, interval time.Duration) {
	defer close(p.done)
	defer e.release(p)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("polling stopped")
			return
		case <-ticker.C:
			// select picks randomly when both are ready
			if ctx.Err() != nil {
				e.logger.Info("polling stopped")
				return
			}
			// A tick in progress runs to completion even if stopped meanwhile.
			e.tick(context.WithoutCancel(ctx))
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	n, err := e.Drain(ctx)
	if err != nil {
		e.logger.Error("drain tick failed",
			"dispatched", n,
			"error", err,
		)
		return
	}
	if n > 0 {
		e.logger.Debug("drain tick", "dispatched", n)
	}
}

// release clears p as the active poller if it still is.
func (e *Engine) release(p *poller) {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()
	if e.poll == p {
		e.poll = nil
	}
}
