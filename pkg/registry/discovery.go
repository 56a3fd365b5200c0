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

	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/google/uuid"
)

// AgentProfile is a full registry profile for a published agent.
type AgentProfile struct {
	ID                   string   `json:"id"`
	CredentialID         string   `json:"credential_id"`
	DisplayName          string   `json:"display_name"`
	ShortDescription     string   `json:"short_description,omitempty"`
	Description          string   `json:"description,omitempty"`
	LogoURL              string   `json:"logo_url,omitempty"`
	Categories           []string `json:"categories"`
	Capabilities         []string `json:"capabilities"`
	Tags                 []string `json:"tags"`
	EndpointURL          string   `json:"endpoint_url,omitempty"`
	DocumentationURL     string   `json:"documentation_url,omitempty"`
	APISpecURL           string   `json:"api_spec_url,omitempty"`
	SupportEmail         string   `json:"support_email,omitempty"`
	SupportURL           string   `json:"support_url,omitempty"`
	TrustScore           int      `json:"trust_score"`
	IsVerified           bool     `json:"is_verified"`
	IsFeatured           bool     `json:"is_featured"`
	VerificationCount    int      `json:"verification_count"`
	MonthlyVerifications int      `json:"monthly_verifications"`
	IssuerName           string   `json:"issuer_name"`
	IssuerVerified       bool     `json:"issuer_verified"`
	CreatedAt            string   `json:"created_at"`
}

// SearchOptions filter a registry search.
type SearchOptions struct {
	Query          string
	Categories     []string
	Capabilities   []string
	MinTrustScore  int
	IssuerVerified bool
	Limit          int
	Offset         int
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Agents []AgentProfile `json:"agents"`
	Total  int            `json:"total"`
}

// Category is a registry category.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	AgentCount  int    `json:"agent_count"`
}

// RegistrationOptions describe an agent being published to the registry.
type RegistrationOptions struct {
	CredentialID     string   `json:"credential_id"`
	DisplayName      string   `json:"display_name"`
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	Categories       []string `json:"categories"`
	Capabilities     []string `json:"capabilities"`
	Tags             []string `json:"tags"`
	EndpointURL      string   `json:"endpoint_url,omitempty"`
	DocumentationURL string   `json:"documentation_url,omitempty"`
	SupportEmail     string   `json:"support_email,omitempty"`

	// Visibility is public, unlisted, or private. Defaults to public.
	Visibility string `json:"visibility"`
}

func (c *Client) registryError(respBody []byte, fallback string) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
		return agentid.NewError(agentid.ErrCodeGeneric, errResp.Error)
	}
	return agentid.NewError(agentid.ErrCodeGeneric, fallback)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body interface{}, extra http.Header) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.headers()
	for key, values := range extra {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, agentid.WrapError(agentid.ErrCodeNetwork, "failed to reach registry", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, agentid.WrapError(agentid.ErrCodeNetwork, "failed to read response", err)
	}
	return resp.StatusCode, respBody, nil
}

// Search queries the registry for published agents.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (*SearchResponse, error) {
	params := url.Values{}
	if opts.Query != "" {
		params.Set("query", opts.Query)
	}
	if len(opts.Categories) > 0 {
		params.Set("categories", strings.Join(opts.Categories, ","))
	}
	if len(opts.Capabilities) > 0 {
		params.Set("capabilities", strings.Join(opts.Capabilities, ","))
	}
	if opts.MinTrustScore > 0 {
		params.Set("min_trust_score", strconv.Itoa(opts.MinTrustScore))
	}
	if opts.IssuerVerified {
		params.Set("issuer_verified", "true")
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	endpoint := c.APIBase + "/registry"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	status, body, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.registryError(body, "failed to search agents")
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, agentid.WrapError(agentid.ErrCodeGeneric, "invalid search response", err)
	}
	return &result, nil
}

// GetAgent fetches an agent profile by credential ID. A missing agent
// returns (nil, nil).
func (c *Client) GetAgent(ctx context.Context, credentialID string) (*AgentProfile, error) {
	endpoint := c.APIBase + "/registry/" + url.PathEscape(credentialID)

	status, body, err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, c.registryError(body, "failed to get agent")
	}

	var response struct {
		Agent *AgentProfile `json:"agent"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, agentid.WrapError(agentid.ErrCodeGeneric, "invalid agent response", err)
	}
	return response.Agent, nil
}

// Register publishes an agent to the registry and returns its registry
// ID. Requires an API key. The request carries a UUID idempotency key so
// a retried call cannot double-register.
func (c *Client) Register(ctx context.Context, opts RegistrationOptions) (string, error) {
	if c.APIKey == "" {
		return "", agentid.NewError(agentid.ErrCodeAuthentication, "API key required for registration")
	}
	if opts.Visibility == "" {
		opts.Visibility = "public"
	}

	extra := make(http.Header)
	extra.Set("Idempotency-Key", uuid.NewString())

	status, body, err := c.doJSON(ctx, http.MethodPost, c.APIBase+"/registry", opts, extra)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", c.registryError(body, "failed to register agent")
	}

	var response struct {
		RegistryID string `json:"registry_id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", agentid.WrapError(agentid.ErrCodeGeneric, "invalid registration response", err)
	}
	return response.RegistryID, nil
}

// Update modifies an existing registry profile. Zero-valued fields in
// opts are sent as-is; use the current profile as the base when doing a
// partial update. Requires an API key.
func (c *Client) Update(ctx context.Context, registryID string, opts RegistrationOptions) error {
	if c.APIKey == "" {
		return agentid.NewError(agentid.ErrCodeAuthentication, "API key required for updates")
	}

	endpoint := c.APIBase + "/registry/" + url.PathEscape(registryID)
	status, body, err := c.doJSON(ctx, http.MethodPut, endpoint, opts, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return c.registryError(body, "failed to update agent")
	}
	return nil
}

// Unregister removes an agent from the registry. Requires an API key.
func (c *Client) Unregister(ctx context.Context, registryID string) error {
	if c.APIKey == "" {
		return agentid.NewError(agentid.ErrCodeAuthentication, "API key required for unregistration")
	}

	endpoint := c.APIBase + "/registry/" + url.PathEscape(registryID)
	status, body, err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return c.registryError(body, "failed to unregister agent")
	}
	return nil
}

// Categories lists the registry's agent categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	status, body, err := c.doJSON(ctx, http.MethodGet, c.APIBase+"/registry/categories", nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.registryError(body, "failed to get categories")
	}

	var response struct {
		Categories []Category `json:"categories"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, agentid.WrapError(agentid.ErrCodeGeneric, "invalid categories response", err)
	}
	return response.Categories, nil
}

// Featured lists the registry's featured agents.
func (c *Client) Featured(ctx context.Context) ([]AgentProfile, error) {
	status, body, err := c.doJSON(ctx, http.MethodGet, c.APIBase+"/registry/featured", nil, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.registryError(body, "failed to get featured agents")
	}

	var response struct {
		Agents []AgentProfile `json:"agents"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, agentid.WrapError(agentid.ErrCodeGeneric, "invalid featured response", err)
	}
	return response.Agents, nil
}
