package agentid

import (
	"bytes"
	"crypto"

	"github.com/go-jose/go-jose/v4"
)

// issuerAlgorithms are the JWS algorithms accepted for issuer signatures.
var issuerAlgorithms = []jose.SignatureAlgorithm{jose.EdDSA, jose.ES256}

// VerifyIssuerSignature checks that the payload's Signature field is a
// valid compact JWS, signed by key, over the canonical JSON of the payload
// without the signature field.
//
// This is an offline authenticity check on top of the authority's verify
// endpoint; most callers rely on the verifier instead and only need this
// when holding issuer keys locally.
func VerifyIssuerSignature(p *CredentialPayload, key crypto.PublicKey) error {
	if p.Signature == "" {
		return NewError(ErrCodeSignatureError, "payload carries no issuer signature")
	}

	jws, err := jose.ParseSigned(p.Signature, issuerAlgorithms)
	if err != nil {
		return WrapError(ErrCodeSignatureError, "malformed issuer signature", err)
	}

	verified, err := jws.Verify(key)
	if err != nil {
		return WrapError(ErrCodeSignatureError, "issuer signature verification failed", err)
	}

	canonical, err := CanonicalPayload(p)
	if err != nil {
		return WrapError(ErrCodeSignatureError, "failed to canonicalize payload", err)
	}

	if !bytes.Equal(verified, canonical) {
		return NewError(ErrCodeSignatureError, "issuer signature does not cover this payload")
	}
	return nil
}
