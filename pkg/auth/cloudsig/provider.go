package cloudsig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reefdb/reef-go-sdk/internal/logging"
	"github.com/reefdb/reef-go-sdk/internal/metrics"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

const (
	// cacheKey is the single key under which the signed header set is
	// cached; the provider signs one fixed request shape.
	cacheKey = "signature"

	// MaxCacheDuration caps the signature TTL at 240 seconds so a cached
	// signature always expires well before the 300 second validity window
	// the service grants it.
	MaxCacheDuration = 240 * time.Second

	// DefaultRefreshAhead is how long before cache expiry the signature is
	// regenerated.
	DefaultRefreshAhead = 10 * time.Second
)

// Config describes a signature provider. Credential sources are tried in
// order: an explicit Signer, then explicit principal fields, then a profile
// in a configuration file.
type Config struct {
	// Signer, when set, is used as-is. Instance- and resource-principal
	// signers come in this way.
	Signer Signer

	// Explicit principal. All four of Tenancy, User, Fingerprint and
	// PrivateKey must be set together; PrivateKey is a PEM file path or
	// PEM content, Passphrase unlocks an encrypted key.
	Tenancy     string
	User        string
	Fingerprint string
	PrivateKey  string
	Passphrase  string

	// ConfigFile and Profile select a profile in an INI configuration
	// file, consulted when neither Signer nor the explicit principal is
	// given. Default ~/.reef/config, profile DEFAULT.
	ConfigFile string
	Profile    string

	// Region the provider talks to. Populated from the config file when
	// resolved there.
	Region string

	// CacheDuration is the signature TTL, at most MaxCacheDuration
	// (the default).
	CacheDuration time.Duration

	// RefreshAhead is the window before expiry in which the signature is
	// regenerated. Defaults to DefaultRefreshAhead.
	RefreshAhead time.Duration

	// Logger receives refresh diagnostics. Defaults to a discard logger.
	Logger *logging.Logger
}

// Provider is the cloud-service auth.Provider. It caches one signed header
// set and regenerates it shortly before expiry.
type Provider struct {
	signer Signer
	region string

	cache *auth.TimedCache[map[string]string]
	sched *auth.RefreshScheduler

	duration     time.Duration
	refreshAhead time.Duration
	logger       *logging.Logger

	mu         sync.Mutex
	serviceURL string
	closed     bool
}

var _ auth.Provider = (*Provider)(nil)

// NewProvider creates a signature provider from cfg.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.CacheDuration == 0 {
		cfg.CacheDuration = MaxCacheDuration
	}
	if cfg.CacheDuration < 0 || cfg.CacheDuration > MaxCacheDuration {
		return nil, &auth.ConfigError{
			Field: "cache_duration",
			Message: fmt.Sprintf("must be positive and at most %v",
				MaxCacheDuration),
		}
	}
	if cfg.RefreshAhead == 0 {
		cfg.RefreshAhead = DefaultRefreshAhead
	}
	if cfg.RefreshAhead < 0 {
		return nil, &auth.ConfigError{Field: "refresh_ahead", Message: "must be positive"}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	signer := cfg.Signer
	region := cfg.Region
	if signer == nil {
		var err error
		if cfg.Tenancy != "" || cfg.User != "" || cfg.Fingerprint != "" || cfg.PrivateKey != "" {
			signer, err = NewAPIKeySigner(cfg.Tenancy, cfg.User,
				cfg.Fingerprint, cfg.PrivateKey, cfg.Passphrase)
		} else {
			signer, region, err = signerFromFile(cfg.ConfigFile, cfg.Profile)
		}
		if err != nil {
			return nil, err
		}
	}

	return &Provider{
		signer:       signer,
		region:       region,
		cache:        auth.NewTimedCache[map[string]string](),
		sched:        auth.NewRefreshScheduler(),
		duration:     cfg.CacheDuration,
		refreshAhead: cfg.RefreshAhead,
		logger:       cfg.Logger,
	}, nil
}

// CreateWithInstancePrincipal creates a provider that authenticates as the
// compute instance it runs on, using the supplied federation signer. The
// compartment must then be specified on every request.
func CreateWithInstancePrincipal(signer Signer, region string, logger *logging.Logger) (*Provider, error) {
	if signer == nil {
		return nil, &auth.ConfigError{Field: "signer", Message: "instance principal signer is required"}
	}
	return NewProvider(Config{Signer: signer, Region: region, Logger: logger})
}

// CreateWithResourcePrincipal creates a provider that authenticates as a
// cloud resource (such as a function) via its session-token signer. The
// compartment must then be specified on every request.
func CreateWithResourcePrincipal(signer Signer, logger *logging.Logger) (*Provider, error) {
	if signer == nil {
		return nil, &auth.ConfigError{Field: "signer", Message: "resource principal signer is required"}
	}
	return NewProvider(Config{Signer: signer, Logger: logger})
}

// SetServiceURL binds the service endpoint the signature covers. Must be
// called before AuthorizationString.
func (p *Provider) SetServiceURL(serviceURL string) error {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Host == "" {
		return &auth.ConfigError{Field: "service_url", Message: "invalid service URL " + serviceURL}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.serviceURL = u.Scheme + "://" + u.Host + "/" + auth.DataPath
	return nil
}

// Region returns the region this provider was configured with, empty if
// unknown.
func (p *Provider) Region() string {
	return p.region
}

// ResourcePrincipalClaim reads a claim from the resource principal's session
// token. Only signers carrying a security token support claims.
func (p *Provider) ResourcePrincipalClaim(key string) (string, error) {
	holder, ok := p.signer.(SecurityTokenHolder)
	if !ok {
		return "", &auth.ConfigError{
			Field:   "signer",
			Message: "claims are only available from resource principal session tokens",
		}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(holder.SecurityToken(), claims); err != nil {
		return "", &auth.AuthError{
			Provider: "cloudsig",
			Message:  "parsing session token: " + err.Error(),
		}
	}
	value, ok := claims[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(value), nil
}

// AuthorizationString returns the cached signature's Authorization value,
// generating and caching a fresh signature on a miss.
func (p *Provider) AuthorizationString(ctx context.Context, req *auth.Request) (string, error) {
	p.mu.Lock()
	closed, bound := p.closed, p.serviceURL != ""
	p.mu.Unlock()
	if closed {
		return "", auth.ErrClosed
	}
	if !bound {
		return "", &auth.ConfigError{
			Field:   "service_url",
			Message: "service URL not set, call SetServiceURL first",
		}
	}

	if sig, ok := p.cache.Get(cacheKey); ok {
		metrics.RecordCacheHit("cloudsig", "signature")
		return sig[auth.HeaderAuthorization], nil
	}
	sig, err := p.sign(ctx)
	if err != nil {
		return "", err
	}
	return sig[auth.HeaderAuthorization], nil
}

// SetRequiredHeaders merges the signed headers plus the compartment header
// into headers, re-signing first if the cached signature has expired. A
// request without a compartment falls back to the tenancy
// root; principals without a tenancy (instance, resource) have no fallback
// and the compartment must come with the request.
func (p *Provider) SetRequiredHeaders(req *auth.Request, authString string, headers http.Header) error {
	sig, ok := p.cache.Get(cacheKey)
	if !ok {
		var err error
		sig, err = p.sign(context.Background())
		if err != nil {
			return err
		}
	}
	headers.Set(auth.HeaderAuthorization, sig[auth.HeaderAuthorization])
	headers.Set(auth.HeaderDate, sig[auth.HeaderDate])
	if obo := sig[auth.HeaderOBOToken]; obo != "" {
		headers.Set(auth.HeaderOBOToken, obo)
	}

	compartment := ""
	if req != nil {
		compartment = req.Compartment
	}
	if compartment == "" {
		compartment = p.tenancy()
	}
	if compartment == "" {
		return &auth.ConfigError{
			Field: "compartment",
			Message: "no compartment specified; when authenticating with an " +
				"instance or resource principal each operation must name its compartment",
		}
	}
	headers.Set(auth.HeaderCompartment, compartment)
	return nil
}

// Close cancels the refresh timer, drops the cached signature and scrubs the
// signer's key material. Idempotent.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.sched.Cancel()
	p.cache.Clear()
	if c, ok := p.signer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// tenancy derives the tenancy from the signing key id; empty for non-user
// principals.
func (p *Provider) tenancy() string {
	keyID := p.signer.KeyID()
	if keyID == "" {
		return ""
	}
	tenancy, _, _ := strings.Cut(keyID, "/")
	return tenancy
}

func (p *Provider) sign(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, auth.ErrClosed
	}
	if sig, ok := p.cache.Get(cacheKey); ok {
		return sig, nil
	}

	start := time.Now()
	sig, err := p.signer.SignHeaders(ctx, http.MethodPost, p.serviceURL)
	metrics.RecordAcquisition("cloudsig", "signature", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	p.cache.Set(cacheKey, sig, p.duration)
	p.scheduleRefreshLocked()
	return sig, nil
}

func (p *Provider) scheduleRefreshLocked() {
	interval := auth.RefreshInterval(p.duration, p.refreshAhead)
	if interval <= 0 {
		return
	}
	p.sched.Schedule(interval, p.refreshTask)
}

// refreshTask regenerates the signature before the cached one expires. A
// failed refresh is logged and the timer stops; the signature is then
// regenerated lazily on the next request, which reports the failure.
func (p *Provider) refreshTask() {
	ctx, cancel := context.WithTimeout(context.Background(), p.refreshAhead)
	defer cancel()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	serviceURL := p.serviceURL
	p.mu.Unlock()

	// Sign without holding the mutex: for federation-backed signers this is
	// a network round trip and must not block foreground callers.
	sig, err := p.signer.SignHeaders(ctx, http.MethodPost, serviceURL)
	metrics.RecordRefresh("cloudsig", err)
	if err != nil {
		p.logger.Debug("unable to refresh cached request signature: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.cache.Set(cacheKey, sig, p.duration)
	p.scheduleRefreshLocked()
}
