package transcript

import (
	"errors"
	"fmt"
)

var (
	// ErrDailyCap is returned when the per-day session cap is reached.
	ErrDailyCap = errors.New("transcript: daily session cap reached")

	// ErrNoSession is returned when an operation needs an open session.
	ErrNoSession = errors.New("transcript: no active session")

	// ErrUnknownFormat is returned for unsupported export formats.
	ErrUnknownFormat = errors.New("transcript: unknown export format")

	// ErrInvalidConfig is returned when a store is missing required settings.
	ErrInvalidConfig = errors.New("transcript: invalid store config")
)

// StorageError wraps a persistence failure. The Logger never returns it to
// callers; it is only logged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("transcript: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
