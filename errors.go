package prefetch

import (
	"errors"
	"fmt"
)

var (
	// ErrNotPending is returned when a payload is stored for an identifier that is not pending.
	ErrNotPending = errors.New("cache entry is not pending")

	// ErrLoadFailed is matched by every error returned from a failed load.
	ErrLoadFailed = errors.New("case detail load failed")

	// ErrMalformedPayload is returned when a transport answers with a payload that fails validation.
	ErrMalformedPayload = errors.New("malformed case detail payload")

	// ErrInvalidConcurrency is returned when the preload concurrency limit is less than 1.
	ErrInvalidConcurrency = errors.New("preload concurrency must be at least 1")

	// ErrNilTransport is returned when a loader is built without a transport.
	ErrNilTransport = errors.New("transport cannot be nil")

	// ErrSessionClosed is returned by blocking session calls after Close.
	ErrSessionClosed = errors.New("prefetch session closed")
)

// TransportError is a failure of a single transport. The loader recovers from
// a primary TransportError by falling back to the secondary transport.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// LoadError is returned when both transports failed for an identifier.
// Its message is the secondary transport's, the last and most specific failure.
type LoadError struct {
	ID        string
	Primary   error
	Secondary error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load case %s: %v", e.ID, e.Secondary)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoadFailed, e.Primary, e.Secondary}
}
