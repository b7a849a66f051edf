package cloud

import (
	"errors"
	"fmt"
)

// Domain errors for cloud API calls.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthExpired is returned on HTTP 401: the bearer token is no longer
	// valid and must be refreshed by the operator.
	ErrAuthExpired = errors.New("cloud: bearer token expired or invalid")

	// ErrNotFound is returned on HTTP 404.
	ErrNotFound = errors.New("cloud: resource not found")

	// ErrNotRegistered is returned when the credentials endpoint answers
	// with an empty array: the device MAC is unknown to the cloud.
	ErrNotRegistered = errors.New("cloud: device not registered")

	// ErrProtocol is returned when a response does not match the expected
	// shape (e.g. a credentials entry without the "API_KEY : " separator).
	ErrProtocol = errors.New("cloud: unexpected response shape")
)

// ServerError reports a non-2xx status not covered by a specific sentinel.
type ServerError struct {
	// Status is the HTTP status code.
	Status int

	// Body is a truncated copy of the response body for diagnostics.
	Body string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("cloud: server returned %d: %s", e.Status, e.Body)
}
