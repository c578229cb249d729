package federated

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/reefdb/reef-go-sdk/internal/logging"
	"github.com/reefdb/reef-go-sdk/internal/metrics"
	"github.com/reefdb/reef-go-sdk/pkg/auth"
)

const (
	// MaxTokenLifetime caps how long an access token may be cached.
	MaxTokenLifetime = 85400 * time.Second

	// DefaultRefreshAhead is how long before cache expiry the data-plane
	// token is refreshed.
	DefaultRefreshAhead = 10 * time.Second
)

// TokenAcquirer performs the actual token exchange with the identity broker.
// Implementations must be safe for concurrent use.
type TokenAcquirer interface {
	// AcquireAdministrativeToken returns a raw access token for
	// account-level table operations.
	AcquireAdministrativeToken(ctx context.Context) (string, error)

	// AcquireDataPlaneToken returns a raw access token for data
	// operations.
	AcquireDataPlaneToken(ctx context.Context) (string, error)
}

// Options tune the caching behavior of a Provider.
type Options struct {
	// CacheDuration is the token cache TTL. Defaults to MaxTokenLifetime
	// and may not exceed it.
	CacheDuration time.Duration

	// RefreshAhead is the window before expiry in which the data-plane
	// token is refreshed. Defaults to DefaultRefreshAhead.
	RefreshAhead time.Duration

	// Logger receives refresh diagnostics. Defaults to a discard logger.
	Logger *logging.Logger
}

// Provider caches access tokens per kind and keeps the data-plane token
// fresh in the background. The token exchange itself is delegated to a
// TokenAcquirer, normally the Broker.
type Provider struct {
	acquirer TokenAcquirer
	cache    *auth.TimedCache[string]
	sched    *auth.RefreshScheduler

	duration     time.Duration
	refreshAhead time.Duration
	logger       *logging.Logger

	mu     sync.Mutex
	closed bool
}

var _ auth.Provider = (*Provider)(nil)

// NewProvider wraps an acquirer with per-kind caching and data-plane
// refresh.
func NewProvider(acquirer TokenAcquirer, opts Options) (*Provider, error) {
	if acquirer == nil {
		return nil, &auth.ConfigError{Field: "acquirer", Message: "token acquirer is required"}
	}
	if opts.CacheDuration == 0 {
		opts.CacheDuration = MaxTokenLifetime
	}
	if opts.CacheDuration < 0 || opts.CacheDuration > MaxTokenLifetime {
		return nil, &auth.ConfigError{
			Field: "cache_duration",
			Message: fmt.Sprintf("must be positive and at most %v",
				MaxTokenLifetime),
		}
	}
	if opts.RefreshAhead == 0 {
		opts.RefreshAhead = DefaultRefreshAhead
	}
	if opts.RefreshAhead < 0 {
		return nil, &auth.ConfigError{Field: "refresh_ahead", Message: "must be positive"}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Provider{
		acquirer:     acquirer,
		cache:        auth.NewTimedCache[string](),
		sched:        auth.NewRefreshScheduler(),
		duration:     opts.CacheDuration,
		refreshAhead: opts.RefreshAhead,
		logger:       opts.Logger,
	}, nil
}

// AuthorizationString returns a bearer string for the token kind the request
// needs, acquiring one through the broker on a cache miss.
func (p *Provider) AuthorizationString(ctx context.Context, req *auth.Request) (string, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", auth.ErrClosed
	}
	p.mu.Unlock()

	kind := kindFor(req)
	if bearer, ok := p.cache.Get(kind.String()); ok {
		metrics.RecordCacheHit("federated", kind.String())
		return bearer, nil
	}
	return p.acquire(ctx, kind)
}

// SetRequiredHeaders merges the authorization string into headers.
func (p *Provider) SetRequiredHeaders(req *auth.Request, authString string, headers http.Header) error {
	if authString != "" {
		headers.Set(auth.HeaderAuthorization, authString)
	}
	return nil
}

// Close cancels any pending refresh, drops all cached tokens and closes the
// acquirer if it holds resources. Idempotent.
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
	if c, ok := p.acquirer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Provider) acquire(ctx context.Context, kind TokenKind) (string, error) {
	// Serialized so concurrent misses do not stampede the broker.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", auth.ErrClosed
	}
	if bearer, ok := p.cache.Get(kind.String()); ok {
		return bearer, nil
	}

	start := time.Now()
	raw, err := p.acquireRaw(ctx, kind)
	metrics.RecordAcquisition("federated", kind.String(), time.Since(start), err)
	if err != nil {
		return "", err
	}

	bearer := auth.BearerPrefix + raw
	p.cache.Set(kind.String(), bearer, p.duration)
	// Administrative tokens are rarely needed and acquiring one requires
	// full user credentials, so only the data-plane token is kept warm.
	if kind == DataPlane {
		p.scheduleRefresh()
	}
	return bearer, nil
}

func (p *Provider) acquireRaw(ctx context.Context, kind TokenKind) (string, error) {
	if kind == Administrative {
		return p.acquirer.AcquireAdministrativeToken(ctx)
	}
	return p.acquirer.AcquireDataPlaneToken(ctx)
}

func (p *Provider) scheduleRefresh() {
	interval := auth.RefreshInterval(p.duration, p.refreshAhead)
	if interval <= 0 {
		return
	}
	p.sched.Schedule(interval, p.refreshTask)
}

// refreshTask renews the data-plane token before it falls out of the cache.
// Transient broker failures are retried within the refresh-ahead window;
// when the window is exhausted the task logs once and stops, leaving the
// next foreground request to re-acquire and report the failure.
func (p *Provider) refreshTask() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.refreshAhead)
	defer cancel()

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	raw, err := backoff.RetryWithData(func() (string, error) {
		token, acqErr := p.acquirer.AcquireDataPlaneToken(ctx)
		if acqErr != nil && !auth.IsRetryable(acqErr) {
			return "", backoff.Permanent(acqErr)
		}
		return token, acqErr
	}, policy)
	metrics.RecordRefresh("federated", err)
	if err != nil {
		p.logger.Error("data-plane token refresh failed: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.cache.Set(DataPlane.String(), auth.BearerPrefix+raw, p.duration)
	p.scheduleRefresh()
}
