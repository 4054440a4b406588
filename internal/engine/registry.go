package engine

import (
	"context"
	"sync"

	"github.com/roach88/evq/internal/queue"
)

// Listener receives the payload of a dispatched item. A returned error
// aborts the current drain pass and is reported to the Drain caller.
type Listener func(ctx context.Context, data queue.Payload) error

// Disposer revokes exactly one registration. Calling it more than once is a
// no-op.
type Disposer func()

type subscription struct {
	id        string
	eventName string
	listener  Listener
}

// registry maps event names to ordered listener lists.
//
// INVARIANTS:
//   - order holds each event name with at least one subscription exactly once,
//     in first-registration order
//   - subs[name] preserves registration order and may hold the same
//     Listener more than once; entries are told apart by id
type registry struct {
	mu    sync.RWMutex
	order []string
	subs  map[string][]*subscription
}

func newRegistry() *registry {
	return &registry{subs: make(map[string][]*subscription)}
}

func (r *registry) add(s *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[s.eventName]; !ok {
		r.order = append(r.order, s.eventName)
	}
	r.subs[s.eventName] = append(r.subs[s.eventName], s)
}

// remove drops the subscription with the given id. It reports false when
// the id is unknown (already removed).
func (r *registry) remove(eventName, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.subs[eventName]
	for i, s := range list {
		if s.id != id {
			continue
		}
		rest := make([]*subscription, 0, len(list)-1)
		rest = append(rest, list[:i]...)
		rest = append(rest, list[i+1:]...)
		if len(rest) == 0 {
			delete(r.subs, eventName)
			r.dropName(eventName)
		} else {
			r.subs[eventName] = rest
		}
		return true
	}
	return false
}

func (r *registry) dropName(eventName string) {
	for i, n := range r.order {
		if n == eventName {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			return
		}
	}
}

// names returns a copy of the event names in registration order.
func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// snapshot returns a copy of the subscriptions for eventName, stable against
// listeners that register or dispose during dispatch.
func (r *registry) snapshot(eventName string) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*subscription(nil), r.subs[eventName]...)
}

func (r *registry) count(eventName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[eventName])
}
