// Package agentid defines the shared data model for the AgentID SDK:
// credential payloads, permissions, verification results, and the error
// taxonomy used across the client and server halves of the toolkit.
package agentid

import (
	"time"
)

// CredentialStatus is the lifecycle status of a credential as seen by the
// holder.
type CredentialStatus string

const (
	StatusActive  CredentialStatus = "active"
	StatusExpired CredentialStatus = "expired"
	StatusRevoked CredentialStatus = "revoked"
)

// IssuerInfo describes the authority that created and signed a credential.
type IssuerInfo struct {
	IssuerID   string `json:"issuer_id"`
	Name       string `json:"name"`
	IssuerType string `json:"issuer_type,omitempty"`
	Domain     string `json:"domain,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

// CredentialConstraints bounds a credential's validity.
type CredentialConstraints struct {
	ValidFrom      time.Time `json:"valid_from"`
	ValidUntil     time.Time `json:"valid_until"`
	AllowedDomains []string  `json:"allowed_domains,omitempty"`
	RateLimit      int       `json:"rate_limit,omitempty"`
}

// CredentialPayload is the full credential as issued. It is immutable once
// fetched; callers must not mutate a payload adopted from the cache.
//
// Invariant: ValidFrom <= ValidUntil. A payload is active only while the
// current time lies in that range and the credential has not been revoked.
type CredentialPayload struct {
	CredentialID string                 `json:"credential_id"`
	AgentID      string                 `json:"agent_id"`
	AgentName    string                 `json:"agent_name"`
	AgentType    string                 `json:"agent_type,omitempty"`
	Issuer       IssuerInfo             `json:"issuer"`
	Permissions  []Permission           `json:"permissions"`
	Constraints  CredentialConstraints  `json:"constraints"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Signature attests issuer authenticity. It is a compact JWS over the
	// canonical JSON of the payload without this field; see
	// VerifyIssuerSignature.
	Signature string `json:"signature"`
}

// PermissionPolicyInfo identifies the permission policy applied during
// verification.
type PermissionPolicyInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// VerificationResult is the outcome of verifying a credential.
//
// A result is constructed fresh per verification call. The verifier caches
// it under "verify:<credential_id>" only when Valid is true; failures are
// never cached so a transient error cannot mask a recovered credential.
type VerificationResult struct {
	Valid            bool                  `json:"valid"`
	Credential       *CredentialPayload    `json:"credential,omitempty"`
	Error            string                `json:"error,omitempty"`
	ErrorCode        string                `json:"error_code,omitempty"`
	TrustScore       *int                  `json:"trust_score,omitempty"`
	IssuerVerified   *bool                 `json:"issuer_verified,omitempty"`
	PermissionPolicy *PermissionPolicyInfo `json:"permission_policy,omitempty"`
	LivePermissions  *bool                 `json:"live_permissions,omitempty"`
}

// RevocationEvent is emitted when a credential is revoked.
type RevocationEvent struct {
	CredentialID string `json:"credential_id"`
	RevokedAt    string `json:"revoked_at"`
	Reason       string `json:"reason,omitempty"`
}

// ReputationInfo carries the reputation signals the authority returns for
// an agent. The trust score is computed remotely, never by this SDK.
type ReputationInfo struct {
	TrustScore        int        `json:"trust_score"`
	VerificationCount int        `json:"verification_count"`
	SuccessRate       *float64   `json:"success_rate,omitempty"`
	IncidentCount     int        `json:"incident_count"`
	LastVerified      *time.Time `json:"last_verified,omitempty"`
}
