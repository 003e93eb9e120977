package transport

import "errors"

var (
	// ErrMalformedEndpoint is returned for a remote endpoint that cannot be
	// parsed. Connect attempts against it are abandoned, not retried.
	ErrMalformedEndpoint = errors.New("transport: malformed endpoint")

	// ErrRemoteUnreachable wraps a failed remote connect or handshake.
	ErrRemoteUnreachable = errors.New("transport: remote unreachable")

	// ErrChannelDown is returned when sending on a channel that is not live.
	ErrChannelDown = errors.New("transport: channel not live")

	// ErrInboxFull is reported when an event is dropped for lack of space.
	ErrInboxFull = errors.New("transport: inbox full")
)
