package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferRoundTrip(t *testing.T) {
	b := NewBufferFromString("hunter2")

	s, ok := b.String()
	require.True(t, ok)
	assert.Equal(t, "hunter2", s)

	called := false
	ok = b.Use(func(secret []byte) {
		called = true
		assert.Equal(t, []byte("hunter2"), secret)
	})
	assert.True(t, ok)
	assert.True(t, called)
}

func TestBufferDestroyIdempotent(t *testing.T) {
	b := NewBufferFromString("secret")
	b.Destroy()
	b.Destroy()

	assert.True(t, b.Destroyed())
	_, ok := b.String()
	assert.False(t, ok)
	assert.False(t, b.Use(func([]byte) { t.Fatal("must not be called") }))
}

func TestEmptyBuffer(t *testing.T) {
	b := NewBuffer(nil)
	_, ok := b.String()
	assert.False(t, ok)
}
