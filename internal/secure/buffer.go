// Package secure holds credential secrets (passwords, private keys, refresh
// tokens) in memory-protected buffers while a provider is alive, and scrubs
// them when the provider closes.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer stores a secret in an encrypted memguard enclave. The plaintext
// exists only transiently, inside Use callbacks.
type Buffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	destroyed bool
}

// NewBuffer copies data into a protected buffer. The caller retains ownership
// of data and should zero it after the call.
func NewBuffer(data []byte) *Buffer {
	if len(data) == 0 {
		return &Buffer{destroyed: true}
	}
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// NewBufferFromString copies s into a protected buffer.
func NewBufferFromString(s string) *Buffer {
	return NewBuffer([]byte(s))
}

// Use decrypts the secret and passes it to fn. The plaintext is wiped when fn
// returns. Use returns false if the buffer was destroyed or empty.
func (b *Buffer) Use(fn func(secret []byte)) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed || b.enclave == nil {
		return false
	}
	locked, err := b.enclave.Open()
	if err != nil {
		return false
	}
	defer locked.Destroy()
	fn(locked.Bytes())
	return true
}

// String decrypts the secret and returns it as a string. Prefer Use where the
// secret does not need to escape; String exists for APIs that require a
// string (basic-auth encoding, form payloads).
func (b *Buffer) String() (string, bool) {
	var s string
	ok := b.Use(func(secret []byte) {
		s = string(secret)
	})
	return s, ok
}

// Destroy scrubs the buffer. Idempotent; after Destroy, Use returns false.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enclave = nil
	b.destroyed = true
}

// Destroyed reports whether the buffer has been scrubbed.
func (b *Buffer) Destroyed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.destroyed
}
