package cloudsig

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

func testKey(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, string(pemBytes)
}

func newTestSigner(t *testing.T) (*APIKeySigner, *rsa.PrivateKey) {
	t.Helper()
	key, pemStr := testKey(t)
	s, err := NewAPIKeySigner("ocid1.tenancy.oc1..ten", "ocid1.user.oc1..usr",
		"aa:bb:cc", pemStr, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, key
}

var signatureRe = regexp.MustCompile(`signature="([^"]+)"`)

func TestAPIKeySignerValidation(t *testing.T) {
	t.Parallel()

	_, pemStr := testKey(t)

	_, err := NewAPIKeySigner("", "user", "fp", pemStr, "")
	assert.True(t, auth.IsConfig(err))

	_, err = NewAPIKeySigner("tenancy", "user", "fp", "not a pem", "")
	assert.True(t, auth.IsConfig(err))
}

func TestAPIKeySignerSignsVerifiably(t *testing.T) {
	t.Parallel()

	s, key := newTestSigner(t)
	assert.Equal(t, "ocid1.tenancy.oc1..ten/ocid1.user.oc1..usr/aa:bb:cc", s.KeyID())

	headers, err := s.SignHeaders(context.Background(), "POST",
		"https://nosql.us-ashburn-1.example.com:443/V2/nosql/data")
	require.NoError(t, err)

	authz := headers[auth.HeaderAuthorization]
	date := headers[auth.HeaderDate]
	require.NotEmpty(t, date)
	assert.Contains(t, authz, `Signature headers="(request-target) host date"`)
	assert.Contains(t, authz, `keyId="ocid1.tenancy.oc1..ten/ocid1.user.oc1..usr/aa:bb:cc"`)
	assert.Contains(t, authz, `algorithm="rsa-sha256"`)
	assert.Contains(t, authz, `version="1"`)

	m := signatureRe.FindStringSubmatch(authz)
	require.Len(t, m, 2)
	sig, err := base64.StdEncoding.DecodeString(m[1])
	require.NoError(t, err)

	signingString := fmt.Sprintf(
		"(request-target): post /V2/nosql/data\nhost: %s\ndate: %s",
		"nosql.us-ashburn-1.example.com:443", date)
	digest := sha256.Sum256([]byte(signingString))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig))
}

func TestAPIKeySignerReadsKeyFromFile(t *testing.T) {
	t.Parallel()

	_, pemStr := testKey(t)
	path := filepath.Join(t.TempDir(), "api_key.pem")
	require.NoError(t, os.WriteFile(path, []byte(pemStr), 0o600))

	s, err := NewAPIKeySigner("tenancy", "user", "fp", path, "")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SignHeaders(context.Background(), "POST", "https://svc.example.com/V2/nosql/data")
	assert.NoError(t, err)
}

func TestAPIKeySignerEncryptedKey(t *testing.T) {
	t.Parallel()

	key, _ := testKey(t)
	//nolint:staticcheck // the legacy encrypted PEM format is part of the key-file contract
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY",
		x509.MarshalPKCS1PrivateKey(key), []byte("open sesame"), x509.PEMCipherAES256)
	require.NoError(t, err)
	encrypted := string(pem.EncodeToMemory(block))

	_, err = NewAPIKeySigner("tenancy", "user", "fp", encrypted, "wrong")
	assert.True(t, auth.IsConfig(err))

	s, err := NewAPIKeySigner("tenancy", "user", "fp", encrypted, "open sesame")
	require.NoError(t, err)
	defer s.Close()

	headers, err := s.SignHeaders(context.Background(), "POST", "https://svc.example.com/V2/nosql/data")
	require.NoError(t, err)
	assert.NotEmpty(t, headers[auth.HeaderAuthorization])
}

func TestAPIKeySignerCloseScrubsKey(t *testing.T) {
	t.Parallel()

	s, _ := newTestSigner(t)
	require.NoError(t, s.Close())

	_, err := s.SignHeaders(context.Background(), "POST", "https://svc.example.com/V2/nosql/data")
	assert.ErrorIs(t, err, auth.ErrClosed)
}
