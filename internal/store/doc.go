// Package store provides SQLite-backed durable slots for queue state.
//
// Each slot is one row keyed by the queue's storage key and holding the
// serialized queue blob. Writes replace the whole row (last writer wins).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// The schema is embedded from schema.sql and upgraded through
// PRAGMA user_version migrations on Open.
package store
