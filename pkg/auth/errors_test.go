package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	cfg := &ConfigError{Field: "duration", Message: "must be positive"}
	assert.True(t, IsConfig(cfg))
	assert.False(t, IsRetryable(cfg))

	authErr := &AuthError{Provider: "federated", Message: "invalid_grant"}
	assert.False(t, IsConfig(authErr))
	assert.False(t, IsRetryable(authErr))

	transient := &RetryableError{Provider: "federated", StatusCode: 503}
	assert.True(t, IsRetryable(transient))
	assert.False(t, IsConfig(transient))
}

func TestClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("acquiring token: %w",
		&RetryableError{Provider: "session", Err: errors.New("connection reset")})
	assert.True(t, IsRetryable(wrapped))
}

func TestRetryableErrorUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: connection refused")
	err := &RetryableError{Provider: "session", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "refresh_ahead", Message: "must be greater than zero"}
	assert.Contains(t, err.Error(), `"refresh_ahead"`)
	assert.Contains(t, err.Error(), "greater than zero")

	err = &ConfigError{Message: "no compartment available"}
	assert.Equal(t, "configuration error: no compartment available", err.Error())
}
