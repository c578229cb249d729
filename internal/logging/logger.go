package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger provides leveled logging with redaction support. Providers log
// through it sparingly: acquisition failures, refresh outcomes, logout
// problems. The zero value is unusable; use New or Discard.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	debug bool
}

// New creates a logger writing to out. If out is nil, os.Stderr is used.
func New(out io.Writer, debug bool) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{out: out, debug: debug}
}

// Discard returns a logger that drops everything. Providers use it when the
// caller supplies no logger.
func Discard() *Logger {
	return &Logger{out: io.Discard}
}

func (l *Logger) log(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s\n", level, msg)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

// Debug logs a message only when debug mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.log("DEBUG", format, args...)
}

// Secret wraps a sensitive value so it is always redacted when formatted.
type Secret string

// String implements fmt.Stringer, returning a redacted value.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces occurrences of the given secrets in s with [REDACTED].
// Trivially short values are left alone to avoid mangling unrelated text.
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if len(secret) > 3 {
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
