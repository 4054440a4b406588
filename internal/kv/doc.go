// Package kv defines the single-slot key/value contract the queue persists
// through, plus an in-memory implementation and a driver factory.
//
// A Store only has to hold one opaque string per key. Durable backends live
// in internal/store (SQLite) and internal/pebblestore (Pebble); Open selects
// one by driver name.
package kv
