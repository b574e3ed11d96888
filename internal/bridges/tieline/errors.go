package tieline

import "errors"

// Domain errors for the Tieline bridge package.
var (
	// ErrUnknownCommand is returned for a command name the bridge does not handle.
	ErrUnknownCommand = errors.New("tieline: unknown command")

	// ErrInvalidParameters is returned when a command is missing a
	// required parameter or a parameter has the wrong type.
	ErrInvalidParameters = errors.New("tieline: invalid command parameters")

	// ErrInvalidPayload is returned when a command payload is not valid JSON.
	ErrInvalidPayload = errors.New("tieline: invalid command payload")
)
