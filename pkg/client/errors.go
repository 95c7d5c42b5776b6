package client

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by a StoreError when the post does not exist.
var ErrNotFound = errors.New("post not found")

// AuthError is returned when the server rejects the session or the password.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "not logged in"
	}
	return "authentication failed: " + e.Message
}

// StoreError wraps every failure that is neither validation nor auth.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// StatusError is an unexpected HTTP response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}
