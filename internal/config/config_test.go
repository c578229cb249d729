package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

func loadFrom(t *testing.T, yaml string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reefauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg := &Config{Path: path}
	return cfg, cfg.Load()
}

func TestLoadSessionProvider(t *testing.T) {
	t.Parallel()

	cfg, err := loadFrom(t, `
version: 1
provider:
  type: session
  session:
    endpoint: https://kvstore.example.com:443
    username: driver
    timeout_ms: 5000
`)
	require.NoError(t, err)
	require.Equal(t, TypeSession, cfg.Definition.Provider.Type)
	assert.Equal(t, "https://kvstore.example.com:443", cfg.Definition.Provider.Session.Endpoint)
	assert.Equal(t, "driver", cfg.Definition.Provider.Session.UserName)
	assert.Equal(t, 5000, cfg.Definition.Provider.Session.TimeoutMs)
}

func TestLoadFederatedProvider(t *testing.T) {
	t.Parallel()

	cfg, err := loadFrom(t, `
version: 1
provider:
  type: federated
  federated:
    url: https://tenant.identity.example.com
    entitlement_id: "123456789"
    use_refresh_token: true
`)
	require.NoError(t, err)
	fed := cfg.Definition.Provider.Federated
	require.NotNil(t, fed)
	assert.Equal(t, "123456789", fed.EntitlementID)
	assert.True(t, fed.UseRefreshToken)
}

func TestLoadCloudProvider(t *testing.T) {
	t.Parallel()

	cfg, err := loadFrom(t, `
version: 1
provider:
  type: cloud
  cloud:
    service_url: https://nosql.eu-frankfurt-1.example.com
    profile: DEV
    cache_duration_s: 120
`)
	require.NoError(t, err)
	cloud := cfg.Definition.Provider.Cloud
	require.NotNil(t, cloud)
	assert.Equal(t, "DEV", cloud.Profile)
	assert.Equal(t, 120, cloud.CacheDurationSeconds)
}

func TestLoadRejectsBadDefinitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"missing type", "version: 1\nprovider: {}\n"},
		{"unknown type", "version: 1\nprovider:\n  type: ldap\n"},
		{"session without endpoint", "version: 1\nprovider:\n  type: session\n  session: {}\n"},
		{"federated without url", "version: 1\nprovider:\n  type: federated\n  federated: {}\n"},
		{"cloud without service url", "version: 1\nprovider:\n  type: cloud\n  cloud: {}\n"},
		{"not yaml", "provider: [unbalanced\n"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadFrom(t, tc.yaml)
			assert.True(t, auth.IsConfig(err), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg := &Config{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	assert.True(t, auth.IsConfig(cfg.Load()))
}
