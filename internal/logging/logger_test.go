package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	l.Debug("token acquired: %s", "abc")
	assert.Empty(t, buf.String())

	l.Info("provider ready")
	assert.Contains(t, buf.String(), "[INFO] provider ready")
}

func TestDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true)

	l.Debug("renew scheduled in %ds", 30)
	assert.Contains(t, buf.String(), "[DEBUG] renew scheduled in 30s")
}

func TestSecretAlwaysRedacted(t *testing.T) {
	s := Secret("super-secret-token")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
}

func TestRedact(t *testing.T) {
	out := Redact("Bearer tok123 issued for user", []string{"tok123"})
	assert.Equal(t, "Bearer [REDACTED] issued for user", out)

	// Short values are not redacted to avoid mangling unrelated text.
	out = Redact("a1b used here", []string{"a1b"})
	assert.Equal(t, "a1b used here", out)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	// Should not panic and should write nowhere.
	l.Error("failed to renew login token: %v", "x")
}
