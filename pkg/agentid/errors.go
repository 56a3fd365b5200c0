package agentid

import (
	"errors"
	"fmt"
	"time"
)

// Error codes surfaced to callers. These are protocol-level string codes,
// not HTTP status codes; the same codes appear in
// VerificationResult.ErrorCode.
const (
	// ErrCodeMissingCredential indicates no credential header was present.
	ErrCodeMissingCredential = "MISSING_CREDENTIAL"

	// ErrCodeMissingSignature indicates signature headers were absent.
	ErrCodeMissingSignature = "MISSING_SIGNATURE"

	// ErrCodeInvalidTimestamp indicates a non-integer timestamp header.
	ErrCodeInvalidTimestamp = "INVALID_TIMESTAMP"

	// ErrCodeSignatureExpired indicates the request timestamp fell outside
	// the freshness window.
	ErrCodeSignatureExpired = "SIGNATURE_EXPIRED"

	// ErrCodeSignatureError indicates signature generation or comparison
	// failed.
	ErrCodeSignatureError = "SIGNATURE_ERROR"

	// ErrCodeCredentialNotFound indicates the authority has no such
	// credential.
	ErrCodeCredentialNotFound = "CREDENTIAL_NOT_FOUND"

	// ErrCodeCredentialExpired indicates the credential's validity window
	// has passed.
	ErrCodeCredentialExpired = "CREDENTIAL_EXPIRED"

	// ErrCodeCredentialRevoked indicates the credential was revoked by its
	// issuer.
	ErrCodeCredentialRevoked = "CREDENTIAL_REVOKED"

	// ErrCodeCredentialInvalid indicates the authority rejected the
	// credential for another reason.
	ErrCodeCredentialInvalid = "CREDENTIAL_INVALID"

	// ErrCodeRateLimited indicates the authority throttled the call.
	ErrCodeRateLimited = "RATE_LIMITED"

	// ErrCodeAuthentication indicates a bad or missing API key.
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"

	// ErrCodeNetwork indicates the authority could not be reached.
	ErrCodeNetwork = "NETWORK_ERROR"

	// ErrCodeGeneric is the catch-all for other authority failures.
	ErrCodeGeneric = "AGENTID_ERROR"
)

// Error is the SDK error type. Code is one of the constants above so
// callers can branch without string-matching messages.
type Error struct {
	Code    string
	Message string

	// RetryAfter is set on RATE_LIMITED errors when the authority sent a
	// Retry-After hint.
	RetryAfter time.Duration

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on error code, so errors.Is(err, agentid.ErrRevoked) works on
// any error carrying the CREDENTIAL_REVOKED code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates an Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an Error wrapping an underlying cause.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinel errors for errors.Is checks.
var (
	ErrMissingCredential = NewError(ErrCodeMissingCredential, "missing credential header")
	ErrMissingSignature  = NewError(ErrCodeMissingSignature, "missing signature headers")
	ErrInvalidTimestamp  = NewError(ErrCodeInvalidTimestamp, "invalid timestamp")
	ErrSignatureExpired  = NewError(ErrCodeSignatureExpired, "request signature expired")
	ErrSignature         = NewError(ErrCodeSignatureError, "signature verification failed")
	ErrNotFound          = NewError(ErrCodeCredentialNotFound, "credential not found")
	ErrExpired           = NewError(ErrCodeCredentialExpired, "credential expired")
	ErrRevoked           = NewError(ErrCodeCredentialRevoked, "credential revoked")
	ErrInvalid           = NewError(ErrCodeCredentialInvalid, "credential invalid")
	ErrRateLimited       = NewError(ErrCodeRateLimited, "rate limit exceeded")
	ErrAuthentication    = NewError(ErrCodeAuthentication, "authentication failed")
	ErrNetwork           = NewError(ErrCodeNetwork, "network error")
)

// AsError returns err as an *Error if it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrorCode extracts the code from an error, or returns the empty string.
func ErrorCode(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
