package engine

import (
	"errors"
	"fmt"
)

// Error represents a failure raised by the engine itself.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Key is the storage slot of the affected queue, when known.
	Key string

	// EventName is the event being emitted or dispatched, when relevant.
	EventName string

	// Err is the underlying cause (listener error, recovered panic, ...).
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidKey indicates an empty storage key.
	ErrCodeInvalidKey ErrorCode = "INVALID_KEY"

	// ErrCodeInvalidEvent indicates an empty event name.
	ErrCodeInvalidEvent ErrorCode = "INVALID_EVENT"

	// ErrCodeAlreadyStarted indicates Start was called while polling.
	ErrCodeAlreadyStarted ErrorCode = "ALREADY_STARTED"

	// ErrCodeListenerFailed indicates a listener returned an error or panicked.
	ErrCodeListenerFailed ErrorCode = "LISTENER_FAILED"
)

// ErrAlreadyStarted is returned by Start when a polling loop is active.
var ErrAlreadyStarted = &Error{
	Code:    ErrCodeAlreadyStarted,
	Message: "polling loop already running",
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.EventName != "" {
		msg += fmt.Sprintf(" (event=%s)", e.EventName)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// UnsupportedEnvironmentError is returned by New when no usable persistent
// store is available. It is not recoverable by retrying.
type UnsupportedEnvironmentError struct {
	Reason string
	Err    error
}

func (e *UnsupportedEnvironmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported environment: %s: %v", e.Reason, e.Err)
	}
	return "unsupported environment: " + e.Reason
}

func (e *UnsupportedEnvironmentError) Unwrap() error {
	return e.Err
}

// IsListenerError reports whether err came from a listener.
// Uses errors.As to handle wrapped errors.
func IsListenerError(err error) bool {
	return hasCode(err, ErrCodeListenerFailed)
}

// IsUnsupportedEnvironment reports whether err is an UnsupportedEnvironmentError.
func IsUnsupportedEnvironment(err error) bool {
	var ue *UnsupportedEnvironmentError
	return errors.As(err, &ue)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// PanicError carries a value recovered from a panicking listener.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("listener panicked: %v", p.Value)
}

func listenerError(key, eventName string, cause error) *Error {
	return &Error{
		Code:      ErrCodeListenerFailed,
		Message:   "listener failed",
		Key:       key,
		EventName: eventName,
		Err:       cause,
	}
}
