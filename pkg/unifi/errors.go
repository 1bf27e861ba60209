package unifi

import (
	"fmt"
)

// AuthenticationError is returned when logging in to the controller fails.
type AuthenticationError struct {
	URL    string
	Status int // 0 when no HTTP response was received
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("unifi: authentication failed: %s returned status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("unifi: authentication failed: %s: %v", e.URL, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RequestError is returned when an authenticated call fails, either at the
// transport level (Status 0, Err set) or with a non-2xx response.
type RequestError struct {
	Method string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("unifi: %s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("unifi: %s %s returned status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (e *RequestError) Unwrap() error { return e.Err }
