package codec

import (
	"errors"
	"fmt"
)

// Domain errors for the codec client.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when an operation needs a session but
	// Connect has not succeeded (or the session was torn down).
	ErrNotConnected = errors.New("codec: not connected")

	// ErrConnectFailed wraps any failure during the initial connect.
	ErrConnectFailed = errors.New("codec: connect failed")

	// ErrPollFailed wraps a failed telemetry fetch. The scheduler logs and
	// swallows these; direct callers of Status/ConnectionStatistics see them.
	ErrPollFailed = errors.New("codec: poll failed")

	// ErrControlFailed wraps a failed mute, profile or reboot command.
	ErrControlFailed = errors.New("codec: control command failed")

	// ErrRequestFailed means the HTTP round trip itself failed
	// (DNS, refused connection, timeout, cancelled context).
	ErrRequestFailed = errors.New("codec: request failed")

	// ErrUnexpectedStatus means the device answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("codec: unexpected HTTP status")

	// ErrMalformedResponse means a 2xx body could not be decoded as JSON.
	ErrMalformedResponse = errors.New("codec: malformed response")

	// ErrInvalidArgument is returned for bad caller input (empty profile id, ...).
	ErrInvalidArgument = errors.New("codec: invalid argument")
)

// GatewayError describes a single failed request to the device.
// Err always wraps one of ErrRequestFailed, ErrUnexpectedStatus or
// ErrMalformedResponse.
type GatewayError struct {
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Err        error
}

// Error implements error.
func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Err
}
