// Package session implements the on-premises authorization provider. It
// performs a bootstrap login against the store's security service, caches the
// returned login token, renews it in the background at half-life, and logs
// out on Close.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/reefdb/reef-go-sdk/internal/httputil"
	"github.com/reefdb/reef-go-sdk/internal/logging"
	"github.com/reefdb/reef-go-sdk/internal/metrics"
	"github.com/reefdb/reef-go-sdk/internal/secure"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

const (
	loginService  = "/login"
	renewService  = "/renew"
	logoutService = "/logout"

	// renewGuard stops renews from firing within the final stretch of a
	// token's life; a token that close to expiry is left to lapse and is
	// re-acquired lazily on next use.
	renewGuard = 10 * time.Second
)

// sessionToken is the server-issued login token. Immutable once published;
// republished wholesale by login and renew.
type sessionToken struct {
	bearer    string
	expiresAt time.Time
}

// Config describes a session provider. Leaving UserName and Password empty
// selects insecure mode, for stores running without security: the provider
// then never performs network calls and authorizes nothing.
type Config struct {
	// UserName and Password authenticate the bootstrap login. Both must be
	// set together or both left empty.
	UserName string
	Password string

	// Endpoint is the proxy endpoint, e.g. "https://kvstore.example.com:443".
	// It may also be bound later with SetEndpoint.
	Endpoint string

	// HTTP configures transport details (timeout, custom trust).
	HTTP httputil.Config

	// Logger receives renew and logout diagnostics. Defaults to a discard
	// logger.
	Logger *logging.Logger
}

// Provider is an on-premises auth.Provider. A single instance is shared by
// every goroutine issuing requests through one driver handle.
type Provider struct {
	mu        sync.Mutex
	secure    bool
	userName  string
	password  *secure.Buffer
	base      string
	endpoint  string
	tok       *sessionToken
	autoRenew bool
	closed    bool

	client *httputil.Client
	sched  *auth.RefreshScheduler
	logger *logging.Logger
}

var _ auth.Provider = (*Provider)(nil)

// New creates a session provider from cfg.
func New(cfg Config) (*Provider, error) {
	if (cfg.UserName == "") != (cfg.Password == "") {
		return nil, &auth.ConfigError{
			Field:   "user_name",
			Message: "user name and password must be supplied together",
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	client, err := httputil.NewClient(cfg.HTTP)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		secure:    cfg.UserName != "",
		userName:  cfg.UserName,
		autoRenew: true,
		client:    client,
		sched:     auth.NewRefreshScheduler(),
		logger:    logger,
	}
	if p.secure {
		p.password = secure.NewBufferFromString(cfg.Password)
	}
	if cfg.Endpoint != "" {
		if err := p.SetEndpoint(cfg.Endpoint); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SetEndpoint binds the proxy endpoint. Secure deployments require https.
func (p *Provider) SetEndpoint(endpoint string) error {
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return &auth.ConfigError{Field: "endpoint", Message: err.Error()}
	}
	if p.secure && !strings.EqualFold(u.Scheme, "https") {
		return &auth.ConfigError{
			Field:   "endpoint",
			Message: "secure session provider requires use of https",
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoint = endpoint
	p.base = u.Scheme + "://" + u.Host
	return nil
}

// Endpoint returns the bound proxy endpoint, empty if unbound.
func (p *Provider) Endpoint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoint
}

// IsSecure reports whether the provider targets a secured store.
func (p *Provider) IsSecure() bool {
	return p.secure
}

// SetAutoRenew enables or disables background renewal of the login token.
// Enabled by default.
func (p *Provider) SetAutoRenew(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoRenew = enabled
	if !enabled {
		p.sched.Cancel()
	}
}

// AuthorizationString returns the current login token as a bearer string.
// Insecure and closed providers return an empty string with no error and
// never touch the network. A missing or expired token triggers a synchronous
// bootstrap login.
func (p *Provider) AuthorizationString(ctx context.Context, req *auth.Request) (string, error) {
	p.mu.Lock()
	if !p.secure || p.closed {
		p.mu.Unlock()
		return "", nil
	}
	if tok := p.tok; tok != nil && time.Now().Before(tok.expiresAt) {
		p.mu.Unlock()
		metrics.RecordCacheHit("session", "session")
		return tok.bearer, nil
	}
	p.mu.Unlock()

	return p.Login(ctx)
}

// SetRequiredHeaders merges the authorization string into headers.
func (p *Provider) SetRequiredHeaders(req *auth.Request, authString string, headers http.Header) error {
	if authString != "" {
		headers.Set(auth.HeaderAuthorization, authString)
	}
	return nil
}

// Login performs the bootstrap login with the configured credentials,
// publishes the returned token, and schedules a renew. It is a no-op for
// insecure or closed providers.
func (p *Provider) Login(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.secure || p.closed {
		return "", nil
	}
	// Another caller may have logged in while this one waited on the lock.
	if tok := p.tok; tok != nil && time.Now().Before(tok.expiresAt) {
		return tok.bearer, nil
	}
	if p.base == "" {
		return "", &auth.ConfigError{
			Field:   "endpoint",
			Message: "endpoint must be set before login",
		}
	}

	pass, ok := p.password.String()
	if !ok {
		return "", auth.ErrClosed
	}
	basic := auth.BasicPrefix +
		base64.StdEncoding.EncodeToString([]byte(p.userName+":"+pass))

	start := time.Now()
	tok, err := p.sendSecurityRequest(ctx, basic, loginService)
	metrics.RecordAcquisition("session", "session", time.Since(start), err)
	if err != nil {
		return "", err
	}

	p.tok = tok
	p.scheduleRenewLocked()
	return tok.bearer, nil
}

// Close logs out of the store (best effort), scrubs credentials, cancels any
// pending renew and permanently closes the provider. Idempotent.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	if p.secure && p.tok != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httputil.DefaultTimeout)
		if _, err := p.sendSecurityRequest(ctx, p.tok.bearer, logoutService); err != nil {
			p.logger.Error("failed to logout user %s: %v", p.userName, err)
		}
		cancel()
	}

	p.closed = true
	p.tok = nil
	if p.password != nil {
		p.password.Destroy()
	}
	p.sched.Cancel()
	return nil
}

// renewTask extends the login session using the current token. Depending on
// server policy a new token with a new expiry may or may not be granted.
func (p *Provider) renewTask() {
	p.mu.Lock()
	if !p.secure || !p.autoRenew || p.closed || p.tok == nil {
		p.mu.Unlock()
		return
	}
	old := p.tok
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), httputil.DefaultTimeout)
	defer cancel()

	tok, err := p.sendSecurityRequest(ctx, old.bearer, renewService)
	metrics.RecordRefresh("session", err)
	if err != nil {
		p.logger.Error("failed to renew login token: %v", err)
		p.sched.Cancel()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	// Install the renewed token only if the cached token is still the one
	// this renew was issued with; a concurrent renew that finished first
	// wins, and this result is discarded.
	if p.tok == old {
		p.tok = tok
	}
	p.scheduleRenewLocked()
}

// scheduleRenewLocked arms the renew timer at half of the remaining token
// life. Callers must hold p.mu. No renew is scheduled within renewGuard of
// expiry, to avoid renew storms in a token's final seconds.
func (p *Provider) scheduleRenewLocked() {
	if !p.secure || !p.autoRenew || p.tok == nil {
		return
	}
	if d := renewDelay(p.tok.expiresAt, time.Now()); d > 0 {
		p.sched.Schedule(d, p.renewTask)
	}
}

// renewDelay computes when the next renew should run for a token expiring at
// expiresAt: half of the remaining life, or 0 when the token is already
// within renewGuard of expiry.
func renewDelay(expiresAt, now time.Time) time.Duration {
	if !expiresAt.After(now.Add(renewGuard)) {
		return 0
	}
	return expiresAt.Sub(now) / 2
}

func (p *Provider) sendSecurityRequest(ctx context.Context, authHeader, service string) (*sessionToken, error) {
	resp, err := p.client.Do(ctx, http.MethodGet,
		p.base+auth.SecurityPath+service,
		map[string]string{auth.HeaderAuthorization: authHeader}, "")
	if err != nil {
		return nil, &auth.RetryableError{Provider: "session", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &auth.AuthError{
			Provider: "session",
			Message: fmt.Sprintf("%s request rejected (status %d): %s",
				strings.TrimPrefix(service, "/"), resp.StatusCode, string(resp.Body)),
		}
	}
	if service == logoutService {
		return nil, nil
	}
	return parseTokenResult(resp.Body)
}

// parseTokenResult extracts the login token and its server-supplied expiry
// from a login or renew response body.
func parseTokenResult(body []byte) (*sessionToken, error) {
	var result struct {
		Token    string `json:"token"`
		ExpireAt int64  `json:"expireAt"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &auth.AuthError{
			Provider: "session",
			Message:  "malformed login token response: " + err.Error(),
		}
	}
	if result.Token == "" {
		return nil, &auth.AuthError{
			Provider: "session",
			Message:  "login token response contains no token",
		}
	}
	return &sessionToken{
		bearer:    auth.BearerPrefix + result.Token,
		expiresAt: time.UnixMilli(result.ExpireAt),
	}, nil
}
