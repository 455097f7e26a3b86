package client

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated covers both a missing credential (failed fast, no request
// issued) and a credential the controller rejected with a 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// APIError is a non-2xx response, with the structured detail when the body
// carried one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("controller returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("controller returned %d", e.Status)
}

// NetworkError is a transport-level failure; no response was received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a client-side precondition failure; no request was issued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

// IsNotFound reports whether err is a 404-class controller response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
