package anki

import (
	"errors"
	"fmt"
)

// ErrUnknown is the catch-all sentinel for failures that fit no other kind.
var ErrUnknown = errors.New("unknown error")

// ConnectionError indicates the engine is unreachable or misbehaving at the
// transport level: network failure, timeout, abort, or a non-2xx HTTP status.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("engine unreachable: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// APIError is an application-level error string returned by the engine in a
// well-formed response.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("engine rejected %s: %s", e.Action, e.Message)
}

// ValidationError is a local precondition failure on caller-supplied input.
// It is never sent over the wire.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
