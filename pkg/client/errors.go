package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure classes. Match with errors.Is.
var (
	// ErrInvalidArgument is returned for caller errors caught before any
	// network call, such as a page size above the protocol maximum.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransport is returned when the HTTP round-trip could not complete
	// or the server answered with a non-200 status. The client never
	// retries; the caller decides whether to retry or abort.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol is returned when the response envelope is missing one of
	// its expected fields, or when pagination fails to terminate within the
	// iteration cap.
	ErrProtocol = errors.New("protocol violation")
)

// ErrorClass classifies a client failure.
type ErrorClass string

const (
	// ErrorClassInvalidArgument covers caller errors rejected before any
	// request is issued.
	ErrorClassInvalidArgument ErrorClass = "invalid_argument"

	// ErrorClassTransport covers network failures and HTTP error statuses.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassProtocol covers malformed envelopes and runaway pagination.
	ErrorClassProtocol ErrorClass = "protocol"
)

// Error is the error type returned by FetchPage and FetchAll.
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("dashboard %s error", e.Class)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps the error's class onto the package sentinels so that
// errors.Is(err, ErrProtocol) works regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Class == ErrorClassInvalidArgument
	case ErrTransport:
		return e.Class == ErrorClassTransport
	case ErrProtocol:
		return e.Class == ErrorClassProtocol
	}
	return false
}
