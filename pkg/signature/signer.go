package signature

import (
	"net/http"
	"strconv"
	"time"
)

// Wire header names for signed requests. Receivers treat them
// case-insensitively.
const (
	HeaderCredential = "X-AgentID-Credential"
	HeaderTimestamp  = "X-AgentID-Timestamp"
	HeaderNonce      = "X-AgentID-Nonce"
	HeaderSignature  = "X-AgentID-Signature"
)

// RequestSigner signs outgoing requests for one credential. The zero
// value is not usable; set CredentialID.
//
// The nonce is minted per request and transmitted for receiver-side replay
// detection, but it is not part of the signature input: receivers rely on
// the timestamp freshness window rather than nonce tracking.
type RequestSigner struct {
	CredentialID string

	// Secret enables HMAC-SHA256 signing. When empty, signatures are
	// plain SHA256 digests of the signing string.
	Secret string

	// now overrides the clock in tests.
	now func() time.Time
}

// NewRequestSigner creates a signer for the given credential.
func NewRequestSigner(credentialID, secret string) *RequestSigner {
	return &RequestSigner{CredentialID: credentialID, Secret: secret}
}

// SignRequest mints a fresh nonce and timestamp, signs the request, and
// returns exactly the four credential headers to attach.
func (s *RequestSigner) SignRequest(method, url string, body []byte) http.Header {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	timestamp := now().Unix()

	sig := Generate(method, url, body, timestamp, s.CredentialID, s.Secret)

	h := make(http.Header, 4)
	h.Set(HeaderCredential, s.CredentialID)
	h.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	h.Set(HeaderNonce, Nonce())
	h.Set(HeaderSignature, sig)
	return h
}
