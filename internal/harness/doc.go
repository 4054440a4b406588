// Package harness runs YAML scenarios against a queue engine and checks the
// resulting delivery trace.
//
// # Scenario Format
//
//	name: hello_world
//	description: "A registered listener receives an emitted event"
//	key: scenario            # optional storage slot
//	corrupt_policy: fail     # optional: fail | reset
//	max_per_drain: 0         # optional dispatch cap per drain
//	steps:
//	  - on: { event: hello, listener: fn }
//	  - emit: { event: hello, data: { world: true } }
//	  - drain: { expect: 1 }
//	assertions:
//	  - type: delivered
//	    listener: fn
//	    data: { world: true }
//
// # Steps
//
//   - on: registers a recording listener under a label. fail makes it return
//     that error; emit makes it emit a follow-up event.
//   - dispose: revokes the most recent registration with the label.
//   - emit: stores an event.
//   - drain: runs one drain; expect and expect_error check the outcome.
//   - restart: replaces the engine with a fresh one over the same store.
//     Registrations are lost, stored items are not.
//   - corrupt: overwrites the stored blob verbatim.
//
// # Assertion Types
//
//   - delivered: some delivery matches listener, event and data (subset)
//   - not_delivered: no delivery matches
//   - delivered_count: exactly count deliveries match
//   - remaining: event names left in the queue, in order
//
// Every run uses an in-memory store, a stepping clock and sequential handles,
// so traces are reproducible and can be compared against golden files.
package harness
