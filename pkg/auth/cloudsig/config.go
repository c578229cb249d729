package cloudsig

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

// DefaultProfile is the profile used when none is named.
const DefaultProfile = "DEFAULT"

// DefaultConfigFile returns the conventional configuration file location,
// ~/.reef/config.
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".reef", "config")
}

// signerFromFile resolves an API key signer from an INI profile. The profile
// must carry tenancy, user, fingerprint and key_file; pass_phrase and region
// are optional.
func signerFromFile(path, profile string) (Signer, string, error) {
	if path == "" {
		path = DefaultConfigFile()
	}
	if profile == "" {
		profile = DefaultProfile
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, "", &auth.ConfigError{Field: "config_file", Message: err.Error()}
	}
	section, err := file.GetSection(profile)
	if err != nil {
		return nil, "", &auth.ConfigError{
			Field:   "profile",
			Message: "profile " + profile + " not found in " + path,
		}
	}

	keyFile := expandHome(section.Key("key_file").String())
	signer, err := NewAPIKeySigner(
		section.Key("tenancy").String(),
		section.Key("user").String(),
		section.Key("fingerprint").String(),
		keyFile,
		section.Key("pass_phrase").String(),
	)
	if err != nil {
		return nil, "", err
	}
	return signer, section.Key("region").String(), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
