// Package pebblestore provides a thin wrapper around Pebble that satisfies
// kv.Store, with an fsync policy and minimal metrics hooks.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set(ctx, "orders", `{"queue":[]}`)
//	v, ok, _ := db.Get(ctx, "orders")
//
// Slots are stored under the "slot/" key prefix so the same database can
// hold other data.
package pebblestore
