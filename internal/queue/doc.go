// Package queue owns the durable queue state: the Item and State types, the
// JSON encoding written to the key/value slot, shape validation against an
// embedded CUE schema, and the read-modify-write operations the engine
// builds on.
//
// State is never cached. Every operation reads the slot, works on the
// decoded copy and writes the whole blob back (last writer wins). An absent
// slot is the empty state; a slot that fails validation is handled
// according to the store's CorruptPolicy.
package queue
