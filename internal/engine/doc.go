// Package engine implements the polling event queue on top of a queue.Store.
//
// ARCHITECTURE:
//
// Producers call Emit, which appends an item to the persisted queue.
// Consumers register listeners with On. Delivery happens only inside Drain,
// either called directly or on every tick of the loop started by Start.
//
// Drain Pass:
//  1. For each event name with listeners, in registration order:
//     a. snapshot the listeners for the name
//     b. remove the oldest stored item with that name and persist the rest
//     c. invoke the snapshotted listeners in registration order
//  2. If anything matched, run another pass.
//
// Removal is persisted before any listener runs, so delivery is at most
// once: an item whose listener fails or panics is not redelivered.
//
// State is reloaded from the store for every emit and every removal. The
// store is the only source of truth; the engine caches nothing but the
// listener registry, which is not persisted.
//
// CONCURRENCY:
//
//   - Emit, On and disposers are safe from any goroutine, including from
//     inside a listener.
//   - One Drain runs at a time per Engine; a second caller waits. Drain must
//     not be called from inside a listener.
//   - Listeners run on the draining goroutine, outside the store lock.
package engine
