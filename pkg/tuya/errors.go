package tuya

import "errors"

// ErrTransportClosed is returned by write paths after Close; using a closed
// Transport or Sender is a programmer error.
var ErrTransportClosed = errors.New("tuya: transport closed")

// ErrConnectionLost is surfaced to any Pending entry outstanding when the
// socket fails or the remote end disconnects.
var ErrConnectionLost = errors.New("tuya: connection lost")

// ErrCancelled is surfaced to update waiters cancelled by session close.
var ErrCancelled = errors.New("tuya: cancelled")

// DecodeError reports a malformed, unauthentic, or undecryptable inbound
// frame, or a response missing data the caller required.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "tuya: decode: " + e.Reason }

func newDecodeError(reason string) error { return &DecodeError{Reason: reason} }

// EncodeError reports an unsupported command or a JSON marshalling failure.
// It is fatal for that call and is never retried automatically.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string { return "tuya: encode: " + e.Reason }

func newEncodeError(reason string) error { return &EncodeError{Reason: reason} }

// ResponseError reports a response whose return_code was non-zero, i.e. the
// device itself rejected the command.
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string { return "tuya: response error: " + e.Message }

// CommandTimeout reports that a Pending entry was not resolved within the
// session timeout. Heartbeats and state refreshes treat this as a warning;
// update sends propagate it to the caller.
type CommandTimeout struct {
	Sequence int
}

func (e *CommandTimeout) Error() string { return "tuya: command timed out" }
