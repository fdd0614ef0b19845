// Package api provides the request dispatcher shared by every fileflow
// backend call: bearer credential injection, unauthorized-response
// interception, and classification of failures into a typed taxonomy.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for failure classification.
// Use errors.Is(err, api.ErrServiceUnavailable) to check.
var (
	// ErrServiceUnavailable covers a failed liveness probe, a 503, or an
	// unreachable service. Callers present it as "retry shortly", never as
	// a permanent failure.
	ErrServiceUnavailable = errors.New("api: service unavailable")

	// ErrInvalidCredentials is a 401 from the login call itself.
	ErrInvalidCredentials = errors.New("api: invalid credentials")

	// ErrUnknownUser is a 404 from the login call.
	ErrUnknownUser = errors.New("api: unknown user")

	// ErrSessionExpired is a mid-session 401 on a non-login call. The
	// dispatcher has already cleared the session when this is returned.
	ErrSessionExpired = errors.New("api: session expired")

	// ErrMalformedResponse is an unexpected payload shape from a backend.
	ErrMalformedResponse = errors.New("api: malformed response")

	// ErrApplication is a structured error returned by the metadata
	// service; the message is passed through verbatim.
	ErrApplication = errors.New("api: application error")

	// ErrTransport is a generic network or HTTP failure, none of the above.
	ErrTransport = errors.New("api: transport error")

	ErrBadRequest  = errors.New("api: bad request")
	ErrForbidden   = errors.New("api: forbidden")
	ErrNotFound    = errors.New("api: not found")
	ErrServerError = errors.New("api: server error")
)

// StatusError wraps a sentinel error with the HTTP status code and the
// response body for debugging.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes. 401 is handled by the dispatcher
// before classification because its meaning depends on which call failed.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrTransport
	}
}
