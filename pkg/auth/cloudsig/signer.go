// Package cloudsig implements authorization for the cloud service using
// signed requests. A Signer produces the signed header set; the Provider
// caches it with a short TTL and regenerates it in the background before it
// expires.
package cloudsig

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/reefdb/reef-go-sdk/internal/secure"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

// Signer produces the signed headers attached to service requests.
// Implementations must be safe for concurrent use.
type Signer interface {
	// SignHeaders signs a request for the given method and URL and
	// returns the headers carrying the signature, at least Authorization
	// and Date.
	SignHeaders(ctx context.Context, method, requestURL string) (map[string]string, error)

	// KeyID identifies the signing key as tenancy/user/fingerprint.
	// Non-user principals (instance, resource) return an empty string.
	KeyID() string
}

// SecurityTokenHolder is implemented by signers backed by a session token,
// such as resource principals, whose token carries readable claims.
type SecurityTokenHolder interface {
	SecurityToken() string
}

const (
	signingAlgorithm = "rsa-sha256"
	signingHeaders   = "(request-target) host date"
	signatureVersion = "1"
)

// APIKeySigner signs requests with a user API key. The private key PEM is
// held in a memory-locked buffer and only parsed for the duration of a
// signing operation.
type APIKeySigner struct {
	keyID      string
	keyPEM     *secure.Buffer
	passphrase *secure.Buffer
}

var _ Signer = (*APIKeySigner)(nil)

// NewAPIKeySigner creates a signer from an explicit principal. privateKey is
// either a path to a PEM file or the PEM content itself; passphrase unlocks
// an encrypted key and may be empty. The key is parsed once up front so a
// bad key fails construction rather than the first request.
func NewAPIKeySigner(tenancy, user, fingerprint, privateKey, passphrase string) (*APIKeySigner, error) {
	if tenancy == "" || user == "" || fingerprint == "" || privateKey == "" {
		return nil, &auth.ConfigError{
			Field:   "tenancy",
			Message: "tenancy, user, fingerprint and private key are all required",
		}
	}

	pemBytes := []byte(privateKey)
	if _, err := os.Stat(privateKey); err == nil {
		pemBytes, err = os.ReadFile(privateKey)
		if err != nil {
			return nil, &auth.ConfigError{Field: "private_key", Message: err.Error()}
		}
	}
	if _, err := parsePrivateKey(pemBytes, []byte(passphrase)); err != nil {
		return nil, &auth.ConfigError{Field: "private_key", Message: err.Error()}
	}

	return &APIKeySigner{
		keyID:      tenancy + "/" + user + "/" + fingerprint,
		keyPEM:     secure.NewBuffer(pemBytes),
		passphrase: secure.NewBufferFromString(passphrase),
	}, nil
}

func (s *APIKeySigner) KeyID() string {
	return s.keyID
}

// SignHeaders signs (request-target), host and date with RSA-SHA256 and
// returns the Authorization and Date headers.
func (s *APIKeySigner) SignHeaders(ctx context.Context, method, requestURL string) (map[string]string, error) {
	u, err := url.Parse(requestURL)
	if err != nil {
		return nil, &auth.ConfigError{Field: "service_url", Message: err.Error()}
	}
	target := u.RequestURI()
	date := time.Now().UTC().Format(http.TimeFormat)

	signingString := fmt.Sprintf("(request-target): %s %s\nhost: %s\ndate: %s",
		strings.ToLower(method), target, u.Host, date)

	var sig []byte
	var signErr error
	sign := func(pass []byte) bool {
		return s.keyPEM.Use(func(pemBytes []byte) {
			key, err := parsePrivateKey(pemBytes, pass)
			if err != nil {
				signErr = err
				return
			}
			digest := sha256.Sum256([]byte(signingString))
			sig, signErr = rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
		})
	}
	ok := false
	// An empty passphrase buffer means the key is unencrypted.
	if !s.passphrase.Use(func(pass []byte) { ok = sign(pass) }) {
		ok = sign(nil)
	}
	if !ok {
		return nil, auth.ErrClosed
	}
	if signErr != nil {
		return nil, &auth.AuthError{
			Provider: "cloudsig",
			Message:  "signing request: " + signErr.Error(),
		}
	}

	authorization := fmt.Sprintf(
		`Signature headers=%q,keyId=%q,algorithm=%q,signature=%q,version=%q`,
		signingHeaders, s.keyID, signingAlgorithm,
		base64.StdEncoding.EncodeToString(sig), signatureVersion)
	return map[string]string{
		auth.HeaderAuthorization: authorization,
		auth.HeaderDate:          date,
	}, nil
}

// Close scrubs the key material. The signer is unusable afterwards.
func (s *APIKeySigner) Close() error {
	s.keyPEM.Destroy()
	s.passphrase.Destroy()
	return nil
}

// parsePrivateKey loads an RSA key from PEM, including legacy encrypted PEM
// and OpenSSH formats.
func parsePrivateKey(pemBytes, passphrase []byte) (*rsa.PrivateKey, error) {
	var key interface{}
	var err error
	if len(passphrase) > 0 {
		key, err = ssh.ParseRawPrivateKeyWithPassphrase(pemBytes, passphrase)
	} else {
		key, err = ssh.ParseRawPrivateKey(pemBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want RSA", key)
	}
	return rsaKey, nil
}
