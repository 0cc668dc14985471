package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingCredentials is returned by Login before any request is made.
var ErrMissingCredentials = errors.New("backend: username and password are required")

// ResponseError is a 2xx response whose body could not be used.
type ResponseError struct {
	Operation string
	Err       error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("backend: malformed %s response: %v", e.Operation, e.Err)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend: %d: %s", e.StatusCode, e.Detail)
}

// IsUnauthorized reports whether err is a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// IsServerError reports whether err is a 5xx from the backend.
func IsServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 500
}
