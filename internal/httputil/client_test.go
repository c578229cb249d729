package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoBuffersBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{})
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), http.MethodGet, srv.URL,
		map[string]string{"Authorization": "Bearer tok"}, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, `{"ok":false}`, string(resp.Body))
}

func TestDoSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		assert.Equal(t, "grant_type=password", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(Config{})
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), http.MethodPost, srv.URL, nil, "grant_type=password")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBadCACertFile(t *testing.T) {
	_, err := NewClient(Config{CACertFile: "/nonexistent/ca.pem"})
	require.Error(t, err)
}
