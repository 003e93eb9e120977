package netattach

import "errors"

var (
	// ErrInvalidCredentials is returned when stored credentials cannot be
	// applied to the link.
	ErrInvalidCredentials = errors.New("netattach: invalid credentials")

	// ErrNoCredentials is the failure reason when an attach is requested
	// with no stored SSID.
	ErrNoCredentials = errors.New("netattach: no credentials")

	// ErrAttachTimeout is the failure reason when the link does not come up
	// within the attach timeout.
	ErrAttachTimeout = errors.New("netattach: attach timeout")

	// ErrUnknownDriver is returned by NewLink for an unsupported driver name.
	ErrUnknownDriver = errors.New("netattach: unknown link driver")
)
