package federated

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

// Credentials bundles an alias (user name or client id) with its secret.
type Credentials struct {
	Alias  string
	Secret string
}

// CredentialsStore supplies the credentials the broker exchanges for access
// tokens, and persists refresh tokens issued alongside them.
type CredentialsStore interface {
	// OAuthClientCredentials returns the OAuth client id and secret.
	OAuthClientCredentials() (Credentials, error)

	// UserCredentials returns the user name and password. The password
	// must be URL-encoded, ready for a form-encoded grant body.
	UserCredentials() (Credentials, error)

	// RefreshToken returns the last stored refresh token, empty if none.
	RefreshToken() (string, error)

	// StoreRefreshToken persists a newly issued refresh token.
	StoreRefreshToken(token string) error
}

// Property keys recognized in a credentials file. Case-insensitive.
const (
	clientIDProp     = "reef_client_id"
	clientSecretProp = "reef_client_secret"
	userNameProp     = "reef_username"
	passwordProp     = "reef_user_pwd"
	refreshTokenProp = "reef_refresh_token"
)

// FileStore reads credentials from a key=value properties file. Leading and
// trailing whitespace around keys and values is ignored; lines without "="
// are skipped. Refresh tokens are written back by rewriting the whole file
// atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ CredentialsStore = (*FileStore)(nil)

// NewFileStore opens the properties file at path.
func NewFileStore(path string) (*FileStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &auth.ConfigError{Field: "credentials_file", Message: err.Error()}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) OAuthClientCredentials() (Credentials, error) {
	id, err := s.property(clientIDProp)
	if err != nil {
		return Credentials{}, err
	}
	secret, err := s.property(clientSecretProp)
	if err != nil {
		return Credentials{}, err
	}
	if id == "" || secret == "" {
		return Credentials{}, &auth.ConfigError{
			Field:   clientIDProp,
			Message: "OAuth client credentials unavailable in " + s.path,
		}
	}
	return Credentials{Alias: id, Secret: secret}, nil
}

func (s *FileStore) UserCredentials() (Credentials, error) {
	name, err := s.property(userNameProp)
	if err != nil {
		return Credentials{}, err
	}
	pwd, err := s.property(passwordProp)
	if err != nil {
		return Credentials{}, err
	}
	if name == "" || pwd == "" {
		return Credentials{}, &auth.ConfigError{
			Field:   userNameProp,
			Message: "user credentials unavailable in " + s.path,
		}
	}
	return Credentials{Alias: name, Secret: url.QueryEscape(pwd)}, nil
}

func (s *FileStore) RefreshToken() (string, error) {
	return s.property(refreshTokenProp)
}

// StoreRefreshToken rewrites the properties file with the refresh token
// replaced, via a temp file renamed into place so readers never observe a
// partial write.
func (s *FileStore) StoreRefreshToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading credentials file: %w", err)
	}

	var out strings.Builder
	replaced := false
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if key, _, ok := splitProperty(line); ok && strings.EqualFold(key, refreshTokenProp) {
			if replaced {
				continue
			}
			line = refreshTokenProp + "=" + token
			replaced = true
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if !replaced {
		out.WriteString(refreshTokenProp + "=" + token + "\n")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(out.String()), 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing credentials file: %w", err)
	}
	return nil
}

func (s *FileStore) property(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("reading credentials file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := splitProperty(scanner.Text())
		if ok && strings.EqualFold(key, name) {
			return value, nil
		}
	}
	return "", scanner.Err()
}

func splitProperty(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(line, "=")
	return strings.TrimSpace(key), strings.TrimSpace(value), ok
}

// DefaultCredentialsFile returns the conventional credentials file location,
// ~/.reef/credentials.
func DefaultCredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".reef", "credentials")
}

// KeyringStore keeps credentials in the operating system keychain. Entries
// are stored under one keyring service, keyed by the same property names as
// FileStore.
type KeyringStore struct {
	service string
}

var _ CredentialsStore = (*KeyringStore)(nil)

// NewKeyringStore opens the keychain entries under the given service name.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (s *KeyringStore) OAuthClientCredentials() (Credentials, error) {
	id, err := s.get(clientIDProp)
	if err != nil {
		return Credentials{}, err
	}
	secret, err := s.get(clientSecretProp)
	if err != nil {
		return Credentials{}, err
	}
	if id == "" || secret == "" {
		return Credentials{}, &auth.ConfigError{
			Field:   clientIDProp,
			Message: "OAuth client credentials not found in keyring service " + s.service,
		}
	}
	return Credentials{Alias: id, Secret: secret}, nil
}

func (s *KeyringStore) UserCredentials() (Credentials, error) {
	name, err := s.get(userNameProp)
	if err != nil {
		return Credentials{}, err
	}
	pwd, err := s.get(passwordProp)
	if err != nil {
		return Credentials{}, err
	}
	if name == "" || pwd == "" {
		return Credentials{}, &auth.ConfigError{
			Field:   userNameProp,
			Message: "user credentials not found in keyring service " + s.service,
		}
	}
	return Credentials{Alias: name, Secret: url.QueryEscape(pwd)}, nil
}

func (s *KeyringStore) RefreshToken() (string, error) {
	return s.get(refreshTokenProp)
}

func (s *KeyringStore) StoreRefreshToken(token string) error {
	return keyring.Set(s.service, refreshTokenProp, token)
}

func (s *KeyringStore) get(key string) (string, error) {
	value, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring entry %s: %w", key, err)
	}
	return value, nil
}
