package auth

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	InvalidCredentials ErrorKind = "invalid_credentials"
	NetworkUnavailable ErrorKind = "network_unavailable"
	ServerError        ErrorKind = "server_error"
)

// Error is returned by Login.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s", e.Kind)
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var authErr *Error
	return errors.As(err, &authErr) && authErr.Kind == kind
}

// Message is the user-facing text for err.
func Message(err error) string {
	var authErr *Error
	if !errors.As(err, &authErr) {
		return "Login failed"
	}
	switch authErr.Kind {
	case InvalidCredentials:
		return "Invalid username or password"
	case NetworkUnavailable:
		return "Cannot reach the server, check your connection"
	default:
		return "The server failed to process the login"
	}
}
