package session

import "errors"

var (
	// ErrTransportAbsent is returned when no channel is attached. Callers
	// treat it as a silent no-op.
	ErrTransportAbsent = errors.New("no active channel")
	// ErrTransmit wraps a failure writing to an open channel.
	ErrTransmit = errors.New("transmit failed")
	// ErrBootstrap wraps a failed membership query.
	ErrBootstrap = errors.New("membership bootstrap failed")
	// ErrMalformedPayload marks an inbound frame that is not a JSON object.
	ErrMalformedPayload = errors.New("malformed inbound payload")
	// ErrEmptyMessage is returned for blank compositions.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrClosed is returned once the session has been torn down.
	ErrClosed = errors.New("session closed")
)
