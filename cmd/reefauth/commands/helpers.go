package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/reefdb/reef-go-sdk/internal/config"
	"github.com/reefdb/reef-go-sdk/internal/httputil"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
	"github.com/reefdb/reef-go-sdk/pkg/auth/cloudsig"
	"github.com/reefdb/reef-go-sdk/pkg/auth/federated"
	"github.com/reefdb/reef-go-sdk/pkg/auth/session"
)

// passwordEnvVar lets scripted invocations skip the interactive prompt.
const passwordEnvVar = "REEF_PASSWORD"

// buildProvider constructs the authorization provider the loaded definition
// selects.
func buildProvider(cfg *config.Config) (auth.Provider, error) {
	def := cfg.Definition
	switch def.Provider.Type {
	case config.TypeSession:
		return buildSessionProvider(cfg, def.Provider.Session)
	case config.TypeFederated:
		return buildFederatedProvider(cfg, def.Provider.Federated)
	case config.TypeCloud:
		return buildCloudProvider(cfg, def.Provider.Cloud)
	}
	return nil, &auth.ConfigError{Field: "provider.type", Message: "unknown provider type"}
}

func buildSessionProvider(cfg *config.Config, sc *config.SessionConfig) (auth.Provider, error) {
	password := ""
	if sc.UserName != "" {
		var err error
		password, err = readPassword(sc.UserName)
		if err != nil {
			return nil, err
		}
	}
	return session.New(session.Config{
		UserName: sc.UserName,
		Password: password,
		Endpoint: sc.Endpoint,
		HTTP:     httpConfig(sc.TimeoutMs, sc.CACertFile, sc.InsecureSkipVerify),
		Logger:   cfg.Logger,
	})
}

func buildFederatedProvider(cfg *config.Config, fc *config.FederatedConfig) (auth.Provider, error) {
	bc, err := brokerConfig(cfg, fc)
	if err != nil {
		return nil, err
	}
	return federated.NewDefaultProvider(bc, federated.Options{Logger: cfg.Logger})
}

func brokerConfig(cfg *config.Config, fc *config.FederatedConfig) (federated.BrokerConfig, error) {
	var creds federated.CredentialsStore
	if fc.KeyringService != "" {
		creds = federated.NewKeyringStore(fc.KeyringService)
	} else {
		path := fc.CredentialsFile
		if path == "" {
			path = federated.DefaultCredentialsFile()
		}
		store, err := federated.NewFileStore(path)
		if err != nil {
			return federated.BrokerConfig{}, err
		}
		creds = store
	}
	return federated.BrokerConfig{
		URL:             fc.URL,
		EntitlementID:   fc.EntitlementID,
		Creds:           creds,
		UseRefreshToken: fc.UseRefreshToken,
		HTTP:            httpConfig(fc.TimeoutMs, "", false),
		Logger:          cfg.Logger,
	}, nil
}

func buildCloudProvider(cfg *config.Config, cc *config.CloudConfig) (auth.Provider, error) {
	p, err := cloudsig.NewProvider(cloudsig.Config{
		Tenancy:       cc.Tenancy,
		User:          cc.User,
		Fingerprint:   cc.Fingerprint,
		PrivateKey:    cc.KeyFile,
		Passphrase:    cc.Passphrase,
		ConfigFile:    cc.ConfigFile,
		Profile:       cc.Profile,
		CacheDuration: time.Duration(cc.CacheDurationSeconds) * time.Second,
		RefreshAhead:  time.Duration(cc.RefreshAheadSeconds) * time.Second,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetServiceURL(cc.ServiceURL); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func httpConfig(timeoutMs int, caCertFile string, insecureSkipVerify bool) httputil.Config {
	return httputil.Config{
		Timeout:            time.Duration(timeoutMs) * time.Millisecond,
		CACertFile:         caCertFile,
		InsecureSkipVerify: insecureSkipVerify,
	}
}

// readPassword takes the password from the environment when present,
// otherwise prompts on the terminal without echo.
func readPassword(userName string) (string, error) {
	if password := os.Getenv(passwordEnvVar); password != "" {
		return password, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", &auth.ConfigError{
			Field: "password",
			Message: "no terminal available for the password prompt; set " +
				passwordEnvVar,
		}
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", userName)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}

// requestForKind maps a token kind name onto a representative request.
func requestForKind(kind string) (*auth.Request, error) {
	switch strings.ToLower(kind) {
	case "data", "":
		return &auth.Request{Op: auth.OpGet}, nil
	case "admin":
		return &auth.Request{Op: auth.OpListTables}, nil
	}
	return nil, &auth.ConfigError{Field: "kind", Message: "kind must be data or admin"}
}

func statusGlyph(cfg *config.Config, ok bool) string {
	if cfg.NoColor {
		if ok {
			return "OK"
		}
		return "FAIL"
	}
	if ok {
		return "✅"
	}
	return "❌"
}
