package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by stores that have been closed.
var ErrClosed = errors.New("kv: store closed")

// Store is the persistence contract used by the queue.
//
// Get reports ok=false when the key has never been written. Set replaces the
// whole value; there is no compare-and-swap.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Pinger is implemented by stores that can report whether the backing
// storage is reachable. Engines ping it at construction.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Memory is a process-local Store. It is not durable across restarts but is
// shared by every engine holding the same *Memory, which is how tests
// simulate a restart.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[key] = value
	return nil
}

// Ping fails once the store is closed.
func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store unusable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
