// Package ipc implements the local RPC connection to the Discord client:
// frame codec, endpoint discovery, handshake/subscription protocol, and the
// event listener with its reconnect state machine.
//
// This file defines sentinel errors and a classified wrapper so callers can
// use errors.Is/errors.As for typed assertions rather than string matching.
package ipc

import (
	"errors"
	"fmt"
)

// Sentinel errors for protocol failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrTransport indicates endpoint-level I/O failure (unreachable
	// endpoint, short read/write, closed connection). Triggers reconnect
	// backoff, never fatal.
	ErrTransport = errors.New("transport failure")

	// ErrHandshakeTimeout indicates the peer never answered the version
	// handshake within the allowed window.
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrMalformedFrame indicates a truncated or size-inconsistent frame.
	// The offending frame is discarded; the connection survives.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrInvalidEncoding indicates frame bytes that are not parseable as
	// the expected JSON body.
	ErrInvalidEncoding = errors.New("invalid frame encoding")

	// ErrSink indicates a failed presence update write. The connection is
	// considered possibly dead and is recreated on the next tick.
	ErrSink = errors.New("presence sink failure")
)

// ProtoError wraps an underlying error with protocol classification.
// It preserves the original error in the chain for inspection via errors.As.
type ProtoError struct {
	// Kind is the sentinel error for classification (e.g. ErrTransport).
	Kind error
	// Op is the operation that failed (e.g. "read_frame", "handshake").
	Op string
	// Err is the underlying error, may be nil.
	Err error
}

func (e *ProtoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *ProtoError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *ProtoError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewProtoError creates a classified protocol error.
func NewProtoError(kind error, op string, err error) *ProtoError {
	return &ProtoError{Kind: kind, Op: op, Err: err}
}

// IsRecoverable reports whether the error should be handled by discarding
// the offending frame and continuing to read, rather than tearing down the
// connection. Only decode-level failures are recoverable; transport and
// handshake failures require a reconnect.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrMalformedFrame) || errors.Is(err, ErrInvalidEncoding)
}
