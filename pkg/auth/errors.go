package auth

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a provider after Close.
var ErrClosed = errors.New("authorization provider is closed")

// ConfigError indicates missing or contradictory construction parameters, or
// a request that cannot be authorized with the configured principal (for
// example, no compartment with an instance principal). Configuration errors
// are fatal and must never be retried.
type ConfigError struct {
	// Field is the configuration field at fault, when one can be named.
	Field string

	// Message describes the problem.
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error in field %q: %s", e.Field, e.Message)
	}
	return "configuration error: " + e.Message
}

// AuthError indicates that the backend rejected the supplied credentials or
// token. It is terminal for the current request, but a later fresh
// acquisition may succeed.
type AuthError struct {
	// Provider names the provider that failed, e.g. "federated" or "session".
	Provider string

	// Message carries the backend's error payload when available.
	Message string
}

func (e *AuthError) Error() string {
	return "authorization failed for " + e.Provider + ": " + e.Message
}

// RetryableError indicates a transient failure (5xx from the identity broker,
// a connection error during acquisition). The driver's retry framework may
// retry the whole request.
type RetryableError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	msg := e.Provider + " transient error"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err may succeed on retry.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsConfig reports whether err is a fatal configuration error.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
