package kv

import (
	"fmt"
	"io"

	"github.com/roach88/evq/internal/pebblestore"
	"github.com/roach88/evq/internal/store"
)

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
	DriverMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	// Driver is one of DriverSQLite, DriverPebble or DriverMemory.
	Driver string
	// Path is the SQLite file or Pebble directory. Ignored for memory.
	Path string
	// Fsync is the Pebble fsync mode ("always", "interval", "never").
	Fsync string
}

// Backend is a Store that owns resources.
type Backend interface {
	Store
	io.Closer
}

// Open returns the backend named by opts.Driver.
func Open(opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("kv: %s driver requires a path", DriverSQLite)
		}
		return store.Open(opts.Path)
	case DriverPebble:
		mode, err := pebblestore.ParseFsyncMode(opts.Fsync)
		if err != nil {
			return nil, err
		}
		return pebblestore.Open(pebblestore.Options{DataDir: opts.Path, Fsync: mode})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", opts.Driver)
	}
}
