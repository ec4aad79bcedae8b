package auth

import (
	"errors"
	"fmt"
)

// ErrSessionExpired means the access token could not be renewed. The stored
// access token has been cleared and the user has to log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

// NetworkError is a transport-level failure: timeout, DNS, refused
// connection or a cancelled context. No refresh is attempted for it.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseFormatError is returned when the refresh endpoint answers 2xx with
// a body that is not JSON or lacks a token. It matches ErrSessionExpired.
type ResponseFormatError struct {
	Reason string
	Err    error
}

func (e *ResponseFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid refresh token response: %s: %v", e.Reason, e.Err)
	}
	return "invalid refresh token response: " + e.Reason
}

func (e *ResponseFormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSessionExpired}
	}
	return []error{ErrSessionExpired, e.Err}
}

// RefreshRejectedError records a non-2xx answer from the refresh endpoint.
// It matches ErrSessionExpired.
type RefreshRejectedError struct {
	StatusCode int
	Body       string
}

func (e *RefreshRejectedError) Error() string {
	return fmt.Sprintf("token refresh failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *RefreshRejectedError) Unwrap() error { return ErrSessionExpired }

// IsSessionExpired reports whether err means the user must log in again.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// IsNetworkError reports whether err carries a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
