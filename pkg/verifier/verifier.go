// Package verifier implements the service side of AgentID: verifying the
// credential headers of incoming requests against the authority and
// caching the results.
package verifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentid-dev/agentid-go/internal/metrics"
	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/cache"
	"github.com/agentid-dev/agentid-go/pkg/permission"
	"github.com/agentid-dev/agentid-go/pkg/registry"
	"github.com/agentid-dev/agentid-go/pkg/signature"
)

// DefaultCacheTTL is how long successful verifications are cached.
const DefaultCacheTTL = 300 * time.Second

// Options configure a Verifier.
type Options struct {
	// APIBase overrides the hosted authority endpoint.
	APIBase string

	// Cache holds verification results. Defaults to the process-wide
	// cache.
	Cache *cache.Cache

	// CacheTTL is the lifetime of cached successful verifications.
	// Defaults to DefaultCacheTTL.
	CacheTTL time.Duration

	// VerifySignature enables the local timestamp and signature-header
	// checks on incoming requests. Enabled unless explicitly disabled.
	VerifySignature *bool

	// SignatureMaxAge is the freshness window for request timestamps.
	// Defaults to signature.DefaultMaxAge.
	SignatureMaxAge time.Duration

	// Registry overrides the authority client, mainly for tests.
	Registry *registry.Client
}

// Verifier verifies incoming requests' AgentID credentials. It is safe
// for concurrent use.
type Verifier struct {
	client          *registry.Client
	cache           *cache.Cache
	cacheTTL        time.Duration
	verifySignature bool
	signatureMaxAge time.Duration

	// now overrides the clock in tests.
	now func() time.Time
}

// New creates a Verifier.
func New(opts Options) *Verifier {
	client := opts.Registry
	if client == nil {
		client = registry.NewClient(opts.APIBase, "")
	}
	c := opts.Cache
	if c == nil {
		c = cache.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	verifySig := true
	if opts.VerifySignature != nil {
		verifySig = *opts.VerifySignature
	}
	maxAge := opts.SignatureMaxAge
	if maxAge <= 0 {
		maxAge = signature.DefaultMaxAge
	}

	return &Verifier{
		client:          client,
		cache:           c,
		cacheTTL:        ttl,
		verifySignature: verifySig,
		signatureMaxAge: maxAge,
		now:             time.Now,
	}
}

// credentialInfo is the set of AgentID headers pulled off a request.
type credentialInfo struct {
	credentialID string
	timestamp    string
	nonce        string
	sig          string
}

// extractCredentialInfo reads the four wire headers case-insensitively.
func extractCredentialInfo(headers map[string]string) credentialInfo {
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		normalized[strings.ToLower(k)] = v
	}
	return credentialInfo{
		credentialID: normalized["x-agentid-credential"],
		timestamp:    normalized["x-agentid-timestamp"],
		nonce:        normalized["x-agentid-nonce"],
		sig:          normalized["x-agentid-signature"],
	}
}

func invalidResult(code, msg string) *agentid.VerificationResult {
	metrics.SignatureFailures.WithLabelValues(code).Inc()
	return &agentid.VerificationResult{Valid: false, Error: msg, ErrorCode: code}
}

// VerifyRequest verifies a request carrying AgentID headers. Requests
// that fail the local checks (missing headers, malformed or stale
// timestamp) are rejected without contacting the authority.
//
// Failures tied to the request or credential come back inside the result;
// an error return means the verification itself could not be carried out
// (network failure, rate limiting).
func (v *Verifier) VerifyRequest(ctx context.Context, headers map[string]string, method, url string, body []byte) (*agentid.VerificationResult, error) {
	info := extractCredentialInfo(headers)

	if info.credentialID == "" {
		return invalidResult(agentid.ErrCodeMissingCredential, "Missing X-AgentID-Credential header"), nil
	}

	if v.verifySignature {
		if info.timestamp == "" || info.sig == "" {
			return invalidResult(agentid.ErrCodeMissingSignature, "Missing signature headers"), nil
		}

		ts, err := strconv.ParseInt(info.timestamp, 10, 64)
		if err != nil {
			return invalidResult(agentid.ErrCodeInvalidTimestamp, "Invalid timestamp"), nil
		}

		age := v.now().Unix() - ts
		if age < 0 {
			age = -age
		}
		if time.Duration(age)*time.Second > v.signatureMaxAge {
			return invalidResult(agentid.ErrCodeSignatureExpired, "Request signature expired"), nil
		}
	}

	return v.VerifyCredential(ctx, info.credentialID, true)
}

// VerifyCredential verifies a credential by ID against the authority.
// Only valid results are cached; a failed verification is always retried
// on the next call.
func (v *Verifier) VerifyCredential(ctx context.Context, credentialID string, useCache bool) (*agentid.VerificationResult, error) {
	cacheKey := "verify:" + credentialID

	if useCache {
		if cached, ok := v.cache.Get(cacheKey); ok {
			if result, ok := cached.(*agentid.VerificationResult); ok {
				metrics.CacheHits.Inc()
				return result, nil
			}
		}
		metrics.CacheMisses.Inc()
	}

	result, err := v.client.Verify(ctx, credentialID)
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		return nil, err
	}

	if result.Valid {
		metrics.Verifications.WithLabelValues("valid").Inc()
		if useCache {
			v.cache.SetTTL(cacheKey, result, v.cacheTTL)
		}
	} else {
		metrics.Verifications.WithLabelValues("invalid").Inc()
	}

	return result, nil
}

// CheckPermission evaluates the verified credential's permissions for
// resource and action. It is a convenience over permission.Check for
// callers holding a result.
func CheckPermission(result *agentid.VerificationResult, resource, action string) permission.Decision {
	if result == nil || !result.Valid || result.Credential == nil {
		return permission.Decision{
			Granted: false,
			Reason:  fmt.Sprintf("No permission for %s on %s", action, resource),
		}
	}
	return permission.Check(result.Credential.Permissions, resource, action, nil)
}
