// Package config loads the reefauth.yaml file describing which authorization
// provider the CLI talks through and how it is configured.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reefdb/reef-go-sdk/internal/logging"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

// Provider type names accepted in the configuration file.
const (
	TypeCloud     = "cloud"
	TypeFederated = "federated"
	TypeSession   = "session"
)

// Config holds the runtime configuration.
type Config struct {
	Path       string
	Logger     *logging.Logger
	NoColor    bool
	Definition *Definition
}

// Definition represents the reefauth.yaml structure.
type Definition struct {
	Version  int            `yaml:"version"`
	Provider ProviderConfig `yaml:"provider"`
}

// ProviderConfig selects the provider type and carries its settings.
type ProviderConfig struct {
	Type      string           `yaml:"type"`
	Cloud     *CloudConfig     `yaml:"cloud,omitempty"`
	Federated *FederatedConfig `yaml:"federated,omitempty"`
	Session   *SessionConfig   `yaml:"session,omitempty"`
}

// CloudConfig configures the request-signature provider.
type CloudConfig struct {
	ServiceURL string `yaml:"service_url"`

	// Config-file principal.
	ConfigFile string `yaml:"config_file,omitempty"`
	Profile    string `yaml:"profile,omitempty"`

	// Explicit principal.
	Tenancy     string `yaml:"tenancy,omitempty"`
	User        string `yaml:"user,omitempty"`
	Fingerprint string `yaml:"fingerprint,omitempty"`
	KeyFile     string `yaml:"key_file,omitempty"`
	Passphrase  string `yaml:"pass_phrase,omitempty"`

	CacheDurationSeconds int `yaml:"cache_duration_s,omitempty"`
	RefreshAheadSeconds  int `yaml:"refresh_ahead_s,omitempty"`
}

// FederatedConfig configures the identity-broker provider.
type FederatedConfig struct {
	URL             string `yaml:"url"`
	EntitlementID   string `yaml:"entitlement_id,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	KeyringService  string `yaml:"keyring_service,omitempty"`
	UseRefreshToken bool   `yaml:"use_refresh_token,omitempty"`
	TimeoutMs       int    `yaml:"timeout_ms,omitempty"`
}

// SessionConfig configures the on-premises provider. The password is never
// stored in the file; the CLI prompts for it.
type SessionConfig struct {
	Endpoint           string `yaml:"endpoint"`
	UserName           string `yaml:"username,omitempty"`
	CACertFile         string `yaml:"ca_cert_file,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	TimeoutMs          int    `yaml:"timeout_ms,omitempty"`
}

// Load reads and parses the configuration file at c.Path.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return &auth.ConfigError{
				Field:   "config",
				Message: "configuration file " + c.Path + " not found",
			}
		}
		return fmt.Errorf("reading configuration file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return &auth.ConfigError{
			Field:   "config",
			Message: "invalid YAML in " + c.Path + ": " + err.Error(),
		}
	}
	if err := def.Validate(); err != nil {
		return err
	}
	c.Definition = &def
	return nil
}

// Validate checks the definition names exactly one properly configured
// provider.
func (d *Definition) Validate() error {
	p := d.Provider
	switch p.Type {
	case TypeCloud:
		if p.Cloud == nil || p.Cloud.ServiceURL == "" {
			return &auth.ConfigError{
				Field:   "provider.cloud.service_url",
				Message: "cloud provider requires a service URL",
			}
		}
	case TypeFederated:
		if p.Federated == nil || p.Federated.URL == "" {
			return &auth.ConfigError{
				Field:   "provider.federated.url",
				Message: "federated provider requires the identity broker URL",
			}
		}
	case TypeSession:
		if p.Session == nil || p.Session.Endpoint == "" {
			return &auth.ConfigError{
				Field:   "provider.session.endpoint",
				Message: "session provider requires an endpoint",
			}
		}
	case "":
		return &auth.ConfigError{
			Field:   "provider.type",
			Message: "provider type is required (cloud, federated or session)",
		}
	default:
		return &auth.ConfigError{
			Field:   "provider.type",
			Message: "unknown provider type " + p.Type + " (want cloud, federated or session)",
		}
	}
	return nil
}
