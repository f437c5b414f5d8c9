package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidCredentials is returned by providers on a wrong email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailInUse is returned when registering an email twice.
	ErrEmailInUse = errors.New("email already in use")
	// ErrWeakPassword is returned when a password is shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("password is too weak")
	// ErrNotAuthenticated is returned when an operation needs a signed-in session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrScreenUnmounted is returned by screens whose stack was torn down.
	ErrScreenUnmounted = errors.New("screen is no longer mounted")
)

// ValidationError reports bad caller input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

// AuthError reports a credential or provider rejection.
type AuthError struct {
	Op  string // "sign-in", "register", "sign-out"
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error [%s]: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Message returns a text suitable for showing to the user.
func (e *AuthError) Message() string {
	switch {
	case errors.Is(e.Err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(e.Err, ErrEmailInUse):
		return "This email is already registered"
	case errors.Is(e.Err, ErrWeakPassword):
		return fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "Unknown error"
	}
}

// StoreError reports a transport or write failure of the document store.
type StoreError struct {
	Op  string // "create", "update", "delete", "listen"
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store error: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the target document does not exist.
// Callers use it to treat a delete of a missing note as non-fatal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ErrWatchUnsupported is returned by Service.Watch for stores without a change feed.
var ErrWatchUnsupported = errors.New("store does not support watching")
