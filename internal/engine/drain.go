package engine

import (
	"context"
	"fmt"

	"github.com/roach88/evq/internal/queue"
)

// Drain dispatches stored items to registered listeners until a pass finds
// no match, and returns how many items were dispatched.
//
// A listener error or panic stops the drain and is returned as an *Error
// with code LISTENER_FAILED; the item it was handling has already been
// removed from the store and will not be redelivered. Store failures
// (including *queue.CorruptStateError) are returned as-is, wrapped.
//
// Items emitted by listeners are visible to later steps of the same drain.
func (e *Engine) Drain(ctx context.Context) (int, error) {
	e.drainMu.Lock()
	defer e.drainMu.Unlock()

	budget := newDrainBudget(e.maxPerDrain)
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := e.pass(ctx, budget)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		if budget.Exhausted() {
			e.logger.Debug("drain budget reached",
				"dispatched", budget.Current(),
				"limit", budget.Limit(),
			)
			return total, nil
		}
	}
}

// pass runs one sweep over the registered event names and returns the number
// of items dispatched.
func (e *Engine) pass(ctx context.Context, budget *drainBudget) (int, error) {
	dispatched := 0
	for _, name := range e.registry.names() {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}
		if budget.Exhausted() {
			return dispatched, nil
		}

		// Snapshot before removal: an item is never removed for a name
		// nobody handles, and every listener in the snapshot sees it.
		subs := e.registry.snapshot(name)
		if len(subs) == 0 {
			continue
		}

		item, ok, err := e.store.Remove(ctx, name)
		if err != nil {
			return dispatched, fmt.Errorf("drain %q: %w", name, err)
		}
		if !ok {
			continue
		}
		dispatched++
		budget.Take()

		seq := e.seq.Next()
		e.logger.Debug("dispatching item",
			"event", name,
			"issued_at", item.IssuedAt,
			"listeners", len(subs),
			"seq", seq,
		)

		if err := e.dispatch(ctx, item, subs); err != nil {
			e.logger.Warn("listener failed; item not redelivered",
				"event", name,
				"issued_at", item.IssuedAt,
				"seq", seq,
				"error", err,
			)
			return dispatched, err
		}
	}
	return dispatched, nil
}

// dispatch invokes subs in order with the item's payload. The first failure
// stops the remaining listeners for this item.
func (e *Engine) dispatch(ctx context.Context, item queue.Item, subs []*subscription) error {
	for _, s := range subs {
		if err := invoke(ctx, s.listener, item.Data); err != nil {
			return listenerError(e.key, item.EventName, err)
		}
	}
	return nil
}

func invoke(ctx context.Context, l Listener, data queue.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return l(ctx, data)
}
