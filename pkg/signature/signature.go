// Package signature implements request signing for AgentID credentials.
//
// A signature covers the canonical string
//
//	METHOD \n URL \n TIMESTAMP \n CREDENTIAL_ID \n SHA256(body)
//
// where the body hash is hex-encoded and empty when there is no body.
// With a shared secret the signature is HMAC-SHA256; without one it is a
// plain SHA256 of the signing string, a self-verifiable mode for
// low-trust introspection only, not a security boundary.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
)

// DefaultMaxAge is the default freshness window for request signatures.
const DefaultMaxAge = 300 * time.Second

// Generate computes the base64-encoded signature for a request. It is
// deterministic: identical inputs always produce identical output.
func Generate(method, url string, body []byte, timestamp int64, credentialID, secret string) string {
	bodyHash := ""
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		bodyHash = hex.EncodeToString(sum[:])
	}

	signingString := strings.ToUpper(method) + "\n" +
		url + "\n" +
		strconv.FormatInt(timestamp, 10) + "\n" +
		credentialID + "\n" +
		bodyHash

	var sig []byte
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(signingString))
		sig = mac.Sum(nil)
	} else {
		sum := sha256.Sum256([]byte(signingString))
		sig = sum[:]
	}

	return base64.StdEncoding.EncodeToString(sig)
}

// Verify recomputes the signature for the given request parameters and
// compares it against sig in constant time.
//
// It fails fast with a SIGNATURE_EXPIRED error when the timestamp falls
// outside maxAge of the current time, regardless of whether the signature
// itself is correct.
func Verify(sig, method, url string, body []byte, timestamp int64, credentialID, secret string, maxAge time.Duration) (bool, error) {
	age := time.Now().Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > maxAge {
		return false, agentid.NewError(agentid.ErrCodeSignatureExpired,
			fmt.Sprintf("request timestamp too old (max age: %s)", maxAge))
	}

	expected := Generate(method, url, body, timestamp, credentialID, secret)
	return subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1, nil
}

// Nonce returns a random URL-safe token for request uniqueness, carrying
// 16 bytes of randomness.
func Nonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("signature: reading random bytes: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
