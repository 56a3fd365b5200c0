// Package registry is the HTTP client for the AgentID authority: the
// verify endpoint the core consumes, the revocation feed, and the agent
// discovery surface.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
)

// DefaultAPIBase is the hosted AgentID authority.
const DefaultAPIBase = "https://agentid.dev/api"

// DefaultTimeout bounds every remote call. There are no retries inside
// the client; retry policy belongs to callers.
const DefaultTimeout = 30 * time.Second

const userAgent = "agentid-go/0.1.0"

// Client talks to the AgentID authority.
type Client struct {
	APIBase    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates an authority client. An empty apiBase selects the
// hosted authority; apiKey may be empty for public credentials.
func NewClient(apiBase, apiKey string) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{
		APIBase: strings.TrimSuffix(apiBase, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

func (c *Client) headers() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", userAgent)
	if c.APIKey != "" {
		h.Set("Authorization", "Bearer "+c.APIKey)
	}
	return h
}

// postVerify performs the raw verify call and returns the response. The
// two public wrappers apply caller-specific status mapping on top.
func (c *Client) postVerify(ctx context.Context, credentialID string) (*http.Response, []byte, error) {
	body, err := json.Marshal(map[string]string{"credential_id": credentialID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBase+"/verify", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.headers()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, agentid.WrapError(agentid.ErrCodeNetwork, "failed to connect to AgentID API", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, agentid.WrapError(agentid.ErrCodeNetwork, "failed to read response", err)
	}
	return resp, respBody, nil
}

func rateLimitError(resp *http.Response) *agentid.Error {
	e := agentid.NewError(agentid.ErrCodeRateLimited, "rate limit exceeded")
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}

// Verify resolves a credential's validity. Credential-state problems are
// reported inside the result, never as an error: only transport failures
// (network, rate limiting, an unparseable body) come back as errors. This
// is the call shape the server-side verifier wants.
func (c *Client) Verify(ctx context.Context, credentialID string) (*agentid.VerificationResult, error) {
	resp, body, err := c.postVerify(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimitError(resp)
	}

	var result agentid.VerificationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, agentid.WrapError(agentid.ErrCodeGeneric, "invalid response from API", err)
	}
	return &result, nil
}

// FetchCredential resolves a credential for its holder. Unlike Verify it
// maps actionable failures to typed errors so client code can branch:
// 429 to RATE_LIMITED (with retry-after), 401 to AUTHENTICATION_ERROR,
// 404 or a CREDENTIAL_NOT_FOUND body to CREDENTIAL_NOT_FOUND, and any
// other non-success status to AGENTID_ERROR carrying the remote code.
func (c *Client) FetchCredential(ctx context.Context, credentialID string) (*agentid.VerificationResult, error) {
	resp, body, err := c.postVerify(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, rateLimitError(resp)
	case http.StatusUnauthorized:
		return nil, agentid.NewError(agentid.ErrCodeAuthentication, "invalid API key")
	}

	var result agentid.VerificationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, agentid.WrapError(agentid.ErrCodeGeneric, "invalid response from API", err)
	}

	if resp.StatusCode == http.StatusNotFound || result.ErrorCode == agentid.ErrCodeCredentialNotFound {
		return nil, agentid.NewError(agentid.ErrCodeCredentialNotFound,
			fmt.Sprintf("credential not found: %s", credentialID))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("API returned status %d", resp.StatusCode)
		}
		code := result.ErrorCode
		if code == "" {
			code = agentid.ErrCodeGeneric
		}
		return nil, agentid.NewError(code, msg)
	}

	return &result, nil
}

// Revocations lists revocation events since the given time, optionally
// filtered to specific credential IDs. The since parameter is transmitted
// as Unix milliseconds.
func (c *Client) Revocations(ctx context.Context, since time.Time, credentialIDs []string) ([]agentid.RevocationEvent, error) {
	params := url.Values{}
	params.Set("since", strconv.FormatInt(since.UnixMilli(), 10))
	if len(credentialIDs) > 0 {
		params.Set("credential_ids", strings.Join(credentialIDs, ","))
	}

	endpoint := c.APIBase + "/revocations?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.headers()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, agentid.WrapError(agentid.ErrCodeNetwork, "failed to fetch revocations", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimitError(resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, agentid.NewError(agentid.ErrCodeGeneric,
			fmt.Sprintf("revocation check failed: status %d", resp.StatusCode))
	}

	var response struct {
		Revocations []agentid.RevocationEvent `json:"revocations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, agentid.WrapError(agentid.ErrCodeGeneric, "failed to decode revocations", err)
	}
	return response.Revocations, nil
}
