package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies the wall time stamped on emitted items.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// sequence numbers dispatches for log correlation. It is process-local and
// restarts at zero with the engine.
type sequence struct {
	n atomic.Int64
}

// Next returns the next number, starting at 1.
func (s *sequence) Next() int64 {
	return s.n.Add(1)
}
