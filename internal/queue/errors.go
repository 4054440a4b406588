package queue

import (
	"errors"
	"fmt"
)

// CorruptStateError reports a slot whose blob does not decode to a valid
// State.
type CorruptStateError struct {
	// Key is the storage slot.
	Key string
	// Err is the parse or schema failure.
	Err error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("queue: corrupt state in slot %q: %v", e.Key, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// IsCorrupt reports whether err is, or wraps, a CorruptStateError.
func IsCorrupt(err error) bool {
	var ce *CorruptStateError
	return errors.As(err, &ce)
}
