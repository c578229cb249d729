package federated

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/reefdb/reef-go-sdk/internal/httputil"
	"github.com/reefdb/reef-go-sdk/internal/logging"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

const (
	tokenEndpoint = "/oauth2/v1/token"
	appEndpoint   = "/admin/v1/Apps"

	// brokerScope grants read access to the caller's own scope metadata.
	brokerScope = "urn:opc:idm:__myscopes__"

	// accountScope is the fixed scope suffix of the account-management
	// audience.
	accountScope = "urn:opc:resource:consumer::all"

	// audiencePrefix starts the audience of the service's OAuth resource;
	// the full audience carries the tenant's entitlement id.
	audiencePrefix = "urn:opc:andc:entitlementid="

	// serviceScope is the only scope defined for the service's OAuth
	// resource, appended to the audience to form a fully qualified scope.
	serviceScope = "urn:opc:andc:resource:consumer::all"

	clientGrantPayload = "grant_type=client_credentials&scope=" + brokerScope
)

// BrokerConfig describes the identity broker a Broker talks to.
type BrokerConfig struct {
	// URL is the tenant-specific broker base URL, e.g.
	// "https://tenant.identity.example.com".
	URL string

	// EntitlementID pre-binds the data-plane scope, skipping discovery for
	// it. Optional.
	EntitlementID string

	// Creds supplies the client and user credentials.
	Creds CredentialsStore

	// UseRefreshToken enables the refresh-token grant for data-plane
	// acquisitions when the store holds one.
	UseRefreshToken bool

	// HTTP configures transport details.
	HTTP httputil.Config

	// Logger receives acquisition diagnostics. Defaults to a discard
	// logger.
	Logger *logging.Logger
}

// Broker exchanges stored credentials for access tokens at a federated
// identity broker. It discovers the tenant's fully qualified scopes once and
// caches them for the life of the instance.
type Broker struct {
	url    string
	creds  CredentialsStore
	client *httputil.Client
	logger *logging.Logger

	useRefreshToken bool

	mu         sync.Mutex
	dataScope  string
	adminScope string
}

var _ TokenAcquirer = (*Broker)(nil)

// NewBroker creates a broker client from cfg.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	if cfg.URL == "" {
		return nil, &auth.ConfigError{Field: "url", Message: "identity broker URL is required"}
	}
	if cfg.Creds == nil {
		return nil, &auth.ConfigError{Field: "creds", Message: "credentials store is required"}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	client, err := httputil.NewClient(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	b := &Broker{
		url:             strings.TrimRight(cfg.URL, "/"),
		creds:           cfg.Creds,
		client:          client,
		logger:          cfg.Logger,
		useRefreshToken: cfg.UseRefreshToken,
	}
	if cfg.EntitlementID != "" {
		b.dataScope = audiencePrefix + cfg.EntitlementID + serviceScope
	}
	return b, nil
}

// NewDefaultProvider builds the standard federated provider: a Broker
// wrapped in a caching Provider.
func NewDefaultProvider(cfg BrokerConfig, opts Options) (*Provider, error) {
	b, err := NewBroker(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = cfg.Logger
	}
	return NewProvider(b, opts)
}

// Scopes are the tenant's fully qualified OAuth scopes.
type Scopes struct {
	// DataPlane is the service scope used for data operations.
	DataPlane string
	// Administrative is the account-management scope. May be empty when
	// the OAuth client is not entitled to account operations.
	Administrative string
}

// DiscoverScopes resolves the tenant's scopes from the broker: a
// client-credentials grant yields a token able to read the OAuth client's
// own metadata, whose allowed scopes carry the fully qualified scope
// strings. Results are cached; later calls return the cached scopes.
func (b *Broker) DiscoverScopes(ctx context.Context) (Scopes, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.discoverLocked(ctx); err != nil {
		return Scopes{}, err
	}
	return Scopes{DataPlane: b.dataScope, Administrative: b.adminScope}, nil
}

// AcquireDataPlaneToken exchanges stored credentials for a data-plane
// access token, preferring the refresh-token grant when enabled and a
// stored token exists.
func (b *Broker) AcquireDataPlaneToken(ctx context.Context) (string, error) {
	scope, err := b.dataPlaneScope(ctx)
	if err != nil {
		return "", err
	}

	if b.useRefreshToken {
		if stored, err := b.creds.RefreshToken(); err == nil && stored != "" {
			token, err := b.refreshGrant(ctx, stored)
			if err == nil {
				return token, nil
			}
			b.logger.Debug("refresh-token grant failed, falling back to password grant: %v", err)
		}
	}
	return b.passwordGrant(ctx, scope)
}

// AcquireAdministrativeToken exchanges stored user credentials for an
// account-management access token.
func (b *Broker) AcquireAdministrativeToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	if err := b.discoverLocked(ctx); err != nil {
		b.mu.Unlock()
		return "", err
	}
	scope := b.adminScope
	b.mu.Unlock()

	if scope == "" {
		return "", &auth.AuthError{
			Provider: "federated",
			Message: "no account-management scope is granted to the OAuth client; " +
				"verify the client configuration with the identity broker",
		}
	}
	return b.passwordGrant(ctx, scope)
}

func (b *Broker) dataPlaneScope(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dataScope == "" {
		if err := b.discoverLocked(ctx); err != nil {
			return "", err
		}
	}
	if b.dataScope == "" {
		return "", &auth.AuthError{
			Provider: "federated",
			Message: "unable to find the service scope; the OAuth client is " +
				"not configured properly",
		}
	}
	return b.dataScope, nil
}

// discoverLocked fills dataScope and adminScope from the OAuth client's
// allowed scopes. Callers must hold b.mu.
func (b *Broker) discoverLocked(ctx context.Context) error {
	if b.dataScope != "" && b.adminScope != "" {
		return nil
	}

	client, err := b.creds.OAuthClientCredentials()
	if err != nil {
		return err
	}
	result, err := b.exchange(ctx, basicHeader(client), clientGrantPayload)
	if err != nil {
		return err
	}

	resp, err := b.client.Do(ctx, http.MethodGet,
		b.url+appEndpoint+`?filter=name+eq+%22`+client.Alias+`%22`,
		map[string]string{
			auth.HeaderAuthorization: auth.BearerPrefix + result.AccessToken,
			"Accept":                 "application/json",
		}, "")
	if err != nil {
		return &auth.RetryableError{Provider: "federated", Err: err}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classifyBrokerStatus(resp.StatusCode, resp.Body,
			"getting client metadata")
	}

	var apps struct {
		Resources []struct {
			AllowedScopes []struct {
				FQS string `json:"fqs"`
			} `json:"allowedScopes"`
		} `json:"Resources"`
	}
	if err := json.Unmarshal(resp.Body, &apps); err != nil {
		return &auth.AuthError{
			Provider: "federated",
			Message:  "malformed client metadata response: " + err.Error(),
		}
	}
	for _, app := range apps.Resources {
		for _, s := range app.AllowedScopes {
			switch {
			case strings.HasPrefix(s.FQS, audiencePrefix):
				b.dataScope = s.FQS
			case strings.HasSuffix(s.FQS, accountScope):
				b.adminScope = s.FQS
			}
		}
	}
	return nil
}

// passwordGrant runs the resource-owner-password grant. The user password
// arrives URL-encoded from the credentials store and is appended to the form
// body as-is.
func (b *Broker) passwordGrant(ctx context.Context, scope string) (string, error) {
	user, err := b.creds.UserCredentials()
	if err != nil {
		return "", err
	}
	client, err := b.creds.OAuthClientCredentials()
	if err != nil {
		return "", err
	}

	payload := fmt.Sprintf("grant_type=password&username=%s&scope=%s&password=%s",
		user.Alias, url.QueryEscape(scope), user.Secret)
	result, err := b.exchange(ctx, basicHeader(client), payload)
	if err != nil {
		return "", err
	}
	b.persistRefreshToken(result.RefreshToken)
	return result.AccessToken, nil
}

func (b *Broker) refreshGrant(ctx context.Context, refreshToken string) (string, error) {
	client, err := b.creds.OAuthClientCredentials()
	if err != nil {
		return "", err
	}
	payload := "grant_type=refresh_token&refresh_token=" + url.QueryEscape(refreshToken)
	result, err := b.exchange(ctx, basicHeader(client), payload)
	if err != nil {
		return "", err
	}
	b.persistRefreshToken(result.RefreshToken)
	return result.AccessToken, nil
}

func (b *Broker) persistRefreshToken(token string) {
	if !b.useRefreshToken || token == "" {
		return
	}
	if err := b.creds.StoreRefreshToken(token); err != nil {
		b.logger.Warn("failed to persist refresh token: %v", err)
	}
}

type tokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (b *Broker) exchange(ctx context.Context, authHeader, payload string) (tokenResult, error) {
	resp, err := b.client.Do(ctx, http.MethodPost, b.url+tokenEndpoint,
		map[string]string{
			auth.HeaderAuthorization: authHeader,
			"Content-Type":           "application/x-www-form-urlencoded",
		}, payload)
	if err != nil {
		return tokenResult{}, &auth.RetryableError{Provider: "federated", Err: err}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return tokenResult{}, classifyBrokerStatus(resp.StatusCode, resp.Body,
			"acquiring access token")
	}

	var result tokenResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return tokenResult{}, &auth.AuthError{
			Provider: "federated",
			Message:  "malformed access token response: " + err.Error(),
		}
	}
	if result.AccessToken == "" {
		return tokenResult{}, &auth.AuthError{
			Provider: "federated",
			Message:  "access token response contains no token",
		}
	}
	return result, nil
}

// classifyBrokerStatus maps a broker error response onto the error taxonomy:
// server-side failures are retryable, a bare 400 means the broker choked on
// the credential encoding itself, and anything else is a terminal
// authorization failure carrying the broker's payload.
func classifyBrokerStatus(status int, body []byte, action string) error {
	switch {
	case status >= http.StatusInternalServerError:
		return &auth.RetryableError{
			Provider:   "federated",
			StatusCode: status,
			Message:    fmt.Sprintf("error %s: %s", action, string(body)),
		}
	case status == http.StatusBadRequest && len(body) == 0:
		return &auth.ConfigError{
			Field:   "credentials",
			Message: "credentials store supplies invalid credentials (bad URL encoding)",
		}
	default:
		return &auth.AuthError{
			Provider: "federated",
			Message: fmt.Sprintf("error %s (status %d): %s",
				action, status, string(body)),
		}
	}
}

func basicHeader(c Credentials) string {
	return auth.BasicPrefix +
		base64.StdEncoding.EncodeToString([]byte(c.Alias+":"+c.Secret))
}
