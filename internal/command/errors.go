package command

import "errors"

var (
	// ErrParse is returned for inbound bytes that are not a JSON object.
	ErrParse = errors.New("command: malformed JSON")

	// ErrValidation is returned when a required field is missing or invalid.
	ErrValidation = errors.New("command: invalid field")

	// ErrUnknownRequest is returned for an unrecognised requestType.
	ErrUnknownRequest = errors.New("command: unknown request type")
)
