// Package httputil wraps net/http for the small HTTP exchanges the
// authorization providers perform against identity endpoints: short requests,
// fully buffered responses, optional custom TLS trust.
package httputil

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultTimeout bounds a single identity-service exchange.
const DefaultTimeout = 30 * time.Second

// Config controls transport construction.
type Config struct {
	// Timeout for a whole request/response exchange. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// CACertFile optionally points at a PEM bundle to trust instead of the
	// system pool.
	CACertFile string

	// TLS optionally supplies a fully constructed TLS configuration. It takes
	// precedence over CACertFile.
	TLS *tls.Config

	// InsecureSkipVerify disables certificate verification. Test use only.
	InsecureSkipVerify bool
}

// Client executes identity-service requests.
type Client struct {
	httpClient *http.Client
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// NewClient builds a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	tlsConfig := cfg.TLS
	if tlsConfig == nil {
		tlsConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
		if cfg.CACertFile != "" {
			pem, err := os.ReadFile(cfg.CACertFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CACertFile)
			}
			tlsConfig.RootCAs = pool
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
	}, nil
}

// Do sends a request and buffers the response body. The body string may be
// empty for GET requests. Network-level failures are returned as errors;
// non-2xx statuses are returned in Response for the caller to classify.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body string) (*Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
