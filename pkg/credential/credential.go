// Package credential implements the holder side of AgentID: loading a
// credential from the authority, tracking its lifecycle, and signing
// outgoing requests with it.
package credential

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/cache"
	"github.com/agentid-dev/agentid-go/pkg/registry"
	"github.com/agentid-dev/agentid-go/pkg/signature"
)

// DefaultRefreshThreshold is how close to expiry a loaded credential is
// considered in need of a refresh.
const DefaultRefreshThreshold = 300 * time.Second

// maxPayloadCacheTTL caps how long a fetched payload may be served from
// cache, even for long-lived credentials.
const maxPayloadCacheTTL = time.Hour

// Options configure an AgentCredential handle.
type Options struct {
	// APIKey authenticates the holder to the authority. Optional for
	// public credentials.
	APIKey string

	// APIBase overrides the hosted authority endpoint.
	APIBase string

	// Cache holds fetched payloads across handles. Defaults to the
	// process-wide cache, so two handles for the same credential share one
	// fetch.
	Cache *cache.Cache

	// AutoRefresh re-fetches the payload transparently when it nears
	// expiry. Enabled unless explicitly disabled.
	AutoRefresh *bool

	// RefreshThreshold is the remaining-validity window that triggers a
	// refresh. Defaults to DefaultRefreshThreshold.
	RefreshThreshold time.Duration

	// SigningSecret enables HMAC request signatures.
	SigningSecret string

	// HTTPClient is used for requests issued through Request and Client.
	// Defaults to a client with the registry timeout.
	HTTPClient *http.Client
}

// AgentCredential is a holder's handle on one credential. It lazily
// fetches and caches the payload, refreshes it near expiry, and produces
// signed request headers.
//
// All methods are safe for concurrent use. Two goroutines that both find
// the payload missing may each fetch it; the second write wins and both
// observe a fresh payload, so the race is benign.
type AgentCredential struct {
	CredentialID string

	client           *registry.Client
	cache            *cache.Cache
	autoRefresh      bool
	refreshThreshold time.Duration
	signer           *signature.RequestSigner
	httpClient       *http.Client

	mu      sync.Mutex
	payload *agentid.CredentialPayload
	status  agentid.CredentialStatus

	// now overrides the clock in tests.
	now func() time.Time
}

// New creates a handle for credentialID. Nothing is fetched until Load or
// the first signed request.
func New(credentialID string, opts Options) *AgentCredential {
	c := opts.Cache
	if c == nil {
		c = cache.Default()
	}
	threshold := opts.RefreshThreshold
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	autoRefresh := true
	if opts.AutoRefresh != nil {
		autoRefresh = *opts.AutoRefresh
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: registry.DefaultTimeout}
	}

	return &AgentCredential{
		CredentialID:     credentialID,
		client:           registry.NewClient(opts.APIBase, opts.APIKey),
		cache:            c,
		autoRefresh:      autoRefresh,
		refreshThreshold: threshold,
		signer:           signature.NewRequestSigner(credentialID, opts.SigningSecret),
		httpClient:       httpClient,
		now:              time.Now,
	}
}

func (c *AgentCredential) cacheKey() string {
	return "credential:" + c.CredentialID
}

// Load fetches the credential payload, serving from cache unless force is
// set. A cached payload within the refresh threshold of expiry is not
// good enough: Load falls through to the authority so callers always get
// a payload with usable remaining validity. A credential the authority
// reports as expired or revoked returns a typed error and updates Status
// accordingly.
func (c *AgentCredential) Load(ctx context.Context, force bool) (*agentid.CredentialPayload, error) {
	if !force {
		if cached, ok := c.cache.Get(c.cacheKey()); ok {
			if payload, ok := cached.(*agentid.CredentialPayload); ok {
				c.mu.Lock()
				c.payload = payload
				c.status = agentid.StatusActive
				c.mu.Unlock()
				if !c.NeedsRefresh() {
					return payload, nil
				}
			}
		}
	}

	result, err := c.client.FetchCredential(ctx, c.CredentialID)
	if err != nil {
		return nil, err
	}

	if !result.Valid {
		return nil, c.markInvalid(result)
	}
	if result.Credential == nil {
		return nil, agentid.NewError(agentid.ErrCodeGeneric, "verify response missing credential payload")
	}

	payload := result.Credential
	c.cache.SetTTL(c.cacheKey(), payload, c.payloadTTL(payload))

	c.mu.Lock()
	c.payload = payload
	c.status = agentid.StatusActive
	c.mu.Unlock()
	return payload, nil
}

// markInvalid records the failed status and maps the authority's error
// code to a typed error.
func (c *AgentCredential) markInvalid(result *agentid.VerificationResult) error {
	msg := result.Error
	c.mu.Lock()
	defer c.mu.Unlock()

	switch result.ErrorCode {
	case agentid.ErrCodeCredentialExpired:
		c.status = agentid.StatusExpired
		if msg == "" {
			msg = "credential expired"
		}
		return agentid.NewError(agentid.ErrCodeCredentialExpired, msg)
	case agentid.ErrCodeCredentialRevoked:
		c.status = agentid.StatusRevoked
		if msg == "" {
			msg = "credential revoked"
		}
		return agentid.NewError(agentid.ErrCodeCredentialRevoked, msg)
	default:
		if msg == "" {
			msg = "credential is not valid"
		}
		return agentid.NewError(agentid.ErrCodeCredentialInvalid, msg)
	}
}

// payloadTTL bounds the cache lifetime by both the credential's remaining
// validity and the global cap.
func (c *AgentCredential) payloadTTL(payload *agentid.CredentialPayload) time.Duration {
	ttl := maxPayloadCacheTTL
	if until := payload.Constraints.ValidUntil; !until.IsZero() {
		if remaining := until.Sub(c.now()); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

// IsLoaded reports whether a payload is held in memory.
func (c *AgentCredential) IsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload != nil
}

// Status returns the last observed lifecycle status. It is empty before
// the first Load.
func (c *AgentCredential) Status() agentid.CredentialStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsExpired reports whether the payload's validity window has passed. An
// unloaded handle counts as expired: there is no payload to sign against,
// so callers treat both states the same way.
func (c *AgentCredential) IsExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return true
	}
	until := c.payload.Constraints.ValidUntil
	return !until.IsZero() && c.now().After(until)
}

// IsActive reports whether the loaded payload is inside its validity
// window and not marked revoked.
func (c *AgentCredential) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil || c.status == agentid.StatusRevoked {
		return false
	}
	now := c.now()
	cons := c.payload.Constraints
	if !cons.ValidFrom.IsZero() && now.Before(cons.ValidFrom) {
		return false
	}
	if !cons.ValidUntil.IsZero() && now.After(cons.ValidUntil) {
		return false
	}
	return true
}

// TimeToExpiry returns the remaining validity of the loaded payload. The
// second return is false when no payload is loaded or it carries no
// expiry.
func (c *AgentCredential) TimeToExpiry() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil || c.payload.Constraints.ValidUntil.IsZero() {
		return 0, false
	}
	return c.payload.Constraints.ValidUntil.Sub(c.now()), true
}

// NeedsRefresh reports whether the payload is absent, expired, or within
// the refresh threshold of expiring.
func (c *AgentCredential) NeedsRefresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return true
	}
	until := c.payload.Constraints.ValidUntil
	if until.IsZero() {
		return false
	}
	return until.Sub(c.now()) <= c.refreshThreshold
}

// refreshIfNeeded reloads the payload when auto-refresh wants one. A
// refresh failure is returned only when no payload is held at all;
// signing can continue on the stale payload otherwise.
func (c *AgentCredential) refreshIfNeeded(ctx context.Context) error {
	if !c.autoRefresh || !c.NeedsRefresh() {
		return nil
	}
	_, err := c.Load(ctx, true)
	if err != nil && c.IsLoaded() {
		return nil
	}
	return err
}

// Headers returns the four signed request headers for a request. The
// handle does not need to be loaded: signing uses only the credential ID
// and secret.
func (c *AgentCredential) Headers(method, url string, body []byte) http.Header {
	return c.signer.SignRequest(method, url, body)
}

// Request performs a signed HTTP request. The payload is refreshed first
// when auto-refresh deems it necessary.
func (c *AgentCredential) Request(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	if err := c.refreshIfNeeded(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range c.Headers(method, url, body) {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	return c.httpClient.Do(req)
}

// transport signs every request that passes through it.
type transport struct {
	cred *AgentCredential
	base http.RoundTripper
}

// RoundTrip clones the request, reads and restores the body, and attaches
// the signed headers. Generated headers overwrite any caller-set values
// of the same names.
func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.cred.refreshIfNeeded(req.Context()); err != nil {
		return nil, err
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
	}
	for key, values := range t.cred.Headers(req.Method, req.URL.String(), body) {
		out.Header.Set(key, values[0])
	}
	return t.base.RoundTrip(out)
}

// Transport wraps base so every request through it carries this
// credential's signed headers. A nil base uses http.DefaultTransport.
func (c *AgentCredential) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{cred: c, base: base}
}

// Client returns an http.Client whose requests are signed with this
// credential.
func (c *AgentCredential) Client() *http.Client {
	return &http.Client{
		Transport: c.Transport(nil),
		Timeout:   registry.DefaultTimeout,
	}
}
