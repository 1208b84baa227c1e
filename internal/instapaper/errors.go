package instapaper

import (
	"errors"
	"fmt"
)

// ErrAuth matches every *AuthError via errors.Is.
var ErrAuth = errors.New("instapaper authentication failed")

// AuthError is returned when Instapaper rejects the xAuth handshake.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (HTTP %d)", ErrAuth, e.StatusCode)
	}
	return fmt.Sprintf("%v (HTTP %d): %s", ErrAuth, e.StatusCode, e.Message)
}

// Is reports whether target is ErrAuth.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// APIError is an error object or non-2xx status returned by an API call.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("instapaper API error %d (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("instapaper API error (HTTP %d): %s", e.StatusCode, e.Message)
}
