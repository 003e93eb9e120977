package device

import "errors"

var (
	// ErrInvalidTransport is returned for an unrecognised transport label or index.
	ErrInvalidTransport = errors.New("device: invalid transport")

	// ErrNoHardwareAddress is returned when an interface has no usable MAC.
	ErrNoHardwareAddress = errors.New("device: no hardware address")
)
