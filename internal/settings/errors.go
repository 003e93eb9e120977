package settings

import "errors"

var (
	// ErrInvalidKey is returned for an empty settings key.
	ErrInvalidKey = errors.New("settings: key cannot be empty")

	// ErrStoreFailed wraps backend read/write failures.
	ErrStoreFailed = errors.New("settings: store operation failed")
)
