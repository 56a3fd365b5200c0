package signature_test

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/signature"
)

func TestGenerateDeterministic(t *testing.T) {
	body := []byte(`{"amount":100}`)
	a := signature.Generate("POST", "https://api.example.com/pay", body, 1700000000, "cred_123", "secret")
	b := signature.Generate("POST", "https://api.example.com/pay", body, 1700000000, "cred_123", "secret")
	assert.Equal(t, a, b)
}

func TestGenerateMethodCaseInsensitive(t *testing.T) {
	a := signature.Generate("post", "https://api.example.com/x", nil, 1700000000, "cred_123", "secret")
	b := signature.Generate("POST", "https://api.example.com/x", nil, 1700000000, "cred_123", "secret")
	assert.Equal(t, a, b)
}

func TestGenerateVariesPerInput(t *testing.T) {
	base := signature.Generate("GET", "https://api.example.com/x", nil, 1700000000, "cred_123", "secret")

	tests := []struct {
		name string
		sig  string
	}{
		{"method", signature.Generate("POST", "https://api.example.com/x", nil, 1700000000, "cred_123", "secret")},
		{"url", signature.Generate("GET", "https://api.example.com/y", nil, 1700000000, "cred_123", "secret")},
		{"timestamp", signature.Generate("GET", "https://api.example.com/x", nil, 1700000001, "cred_123", "secret")},
		{"credential", signature.Generate("GET", "https://api.example.com/x", nil, 1700000000, "cred_456", "secret")},
		{"secret", signature.Generate("GET", "https://api.example.com/x", nil, 1700000000, "cred_123", "other")},
		{"body", signature.Generate("GET", "https://api.example.com/x", []byte("x"), 1700000000, "cred_123", "secret")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.sig)
		})
	}
}

func TestGenerateWithoutSecret(t *testing.T) {
	withSecret := signature.Generate("GET", "https://api.example.com/x", nil, 1700000000, "cred_123", "secret")
	withoutSecret := signature.Generate("GET", "https://api.example.com/x", nil, 1700000000, "cred_123", "")
	assert.NotEqual(t, withSecret, withoutSecret)

	// Unkeyed mode is still deterministic.
	again := signature.Generate("GET", "https://api.example.com/x", nil, 1700000000, "cred_123", "")
	assert.Equal(t, withoutSecret, again)
}

func TestVerifyRoundTrip(t *testing.T) {
	ts := time.Now().Unix()
	body := []byte(`{"q":"hello"}`)
	sig := signature.Generate("POST", "https://api.example.com/ask", body, ts, "cred_123", "secret")

	ok, err := signature.Verify(sig, "POST", "https://api.example.com/ask", body, ts, "cred_123", "secret", signature.DefaultMaxAge)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	ts := time.Now().Unix()
	sig := signature.Generate("POST", "https://api.example.com/ask", []byte("original"), ts, "cred_123", "secret")

	ok, err := signature.Verify(sig, "POST", "https://api.example.com/ask", []byte("tampered"), ts, "cred_123", "secret", signature.DefaultMaxAge)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyStaleTimestamp(t *testing.T) {
	ts := time.Now().Add(-10 * time.Minute).Unix()
	sig := signature.Generate("GET", "https://api.example.com/x", nil, ts, "cred_123", "secret")

	ok, err := signature.Verify(sig, "GET", "https://api.example.com/x", nil, ts, "cred_123", "secret", signature.DefaultMaxAge)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Equal(t, agentid.ErrCodeSignatureExpired, agentid.ErrorCode(err))
}

func TestVerifyFutureTimestamp(t *testing.T) {
	ts := time.Now().Add(10 * time.Minute).Unix()
	sig := signature.Generate("GET", "https://api.example.com/x", nil, ts, "cred_123", "secret")

	_, err := signature.Verify(sig, "GET", "https://api.example.com/x", nil, ts, "cred_123", "secret", signature.DefaultMaxAge)
	require.Error(t, err)
	assert.Equal(t, agentid.ErrCodeSignatureExpired, agentid.ErrorCode(err))
}

func TestNonceUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := signature.Nonce()
		assert.NotEmpty(t, n)
		assert.False(t, seen[n], "nonce repeated")
		seen[n] = true
	}
}

// Security note: the nonce is transmitted but not folded into the
// signing string, so two requests signed in the same second carry
// identical signatures under different nonces. Replay protection rests
// entirely on the timestamp freshness window. Deployments needing
// single-use requests should include the nonce in the signing string and
// keep a short-lived seen-nonce set on the receiver; this test pins the
// current wire behavior so such a change is deliberate.
func TestNonceDoesNotAffectSignature(t *testing.T) {
	signer := signature.NewRequestSigner("cred_123", "secret")

	var h1, h2 http.Header
	// Retry across a second boundary until both headers share a timestamp.
	for i := 0; i < 5; i++ {
		h1 = signer.SignRequest("GET", "https://api.example.com/x", nil)
		h2 = signer.SignRequest("GET", "https://api.example.com/x", nil)
		if h1.Get(signature.HeaderTimestamp) == h2.Get(signature.HeaderTimestamp) {
			break
		}
	}
	require.Equal(t, h1.Get(signature.HeaderTimestamp), h2.Get(signature.HeaderTimestamp))

	assert.NotEqual(t, h1.Get(signature.HeaderNonce), h2.Get(signature.HeaderNonce))
	assert.Equal(t, h1.Get(signature.HeaderSignature), h2.Get(signature.HeaderSignature))
}

func TestSignRequestHeaders(t *testing.T) {
	signer := signature.NewRequestSigner("cred_123", "secret")
	body := []byte(`{"amount":5}`)

	h := signer.SignRequest("POST", "https://api.example.com/pay", body)

	assert.Equal(t, "cred_123", h.Get(signature.HeaderCredential))
	assert.NotEmpty(t, h.Get(signature.HeaderNonce))
	require.NotEmpty(t, h.Get(signature.HeaderTimestamp))
	ts, err := strconv.ParseInt(h.Get(signature.HeaderTimestamp), 10, 64)
	require.NoError(t, err)

	// The signature must verify against the transmitted timestamp. The
	// nonce is not part of the signing input, so recomputation needs only
	// the other headers.
	expected := signature.Generate("POST", "https://api.example.com/pay", body, ts, "cred_123", "secret")
	assert.Equal(t, expected, h.Get(signature.HeaderSignature))
}
