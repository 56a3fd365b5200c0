package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/permission"
)

type contextKey struct{}

// ResultFromContext returns the verification result the middleware stored
// for this request. The second return is false outside the middleware.
func ResultFromContext(ctx context.Context) (*agentid.VerificationResult, bool) {
	result, ok := ctx.Value(contextKey{}).(*agentid.VerificationResult)
	return result, ok
}

// maxBodyBytes caps how much of a request body the middleware buffers for
// signature handling.
const maxBodyBytes = 10 << 20

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":      msg,
		"error_code": code,
	})
}

// Middleware verifies the AgentID headers on every request before the
// next handler runs. Rejected requests get a 401 with a JSON error body;
// an authority outage gets a 500. On success the result is stored in the
// request context for ResultFromContext and RequirePermission.
//
// The request body is read and restored so handlers still see it.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil && r.Body != http.NoBody {
			var err error
			body, err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			r.Body.Close()
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, agentid.ErrCodeGeneric, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		headers := make(map[string]string, len(r.Header))
		for key := range r.Header {
			headers[key] = r.Header.Get(key)
		}

		result, err := v.VerifyRequest(r.Context(), headers, r.Method, r.URL.String(), body)
		if err != nil {
			slog.Error("credential verification failed",
				"path", r.URL.Path,
				"error", err)
			writeJSONError(w, http.StatusInternalServerError, agentid.ErrorCode(err), "verification unavailable")
			return
		}
		if !result.Valid {
			writeJSONError(w, http.StatusUnauthorized, result.ErrorCode, result.Error)
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, result)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a handler on the verified credential granting
// action on resource. It must run inside Middleware; without a stored
// result every request is rejected with a 401.
func RequirePermission(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, ok := ResultFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, agentid.ErrCodeMissingCredential, "no verified credential")
				return
			}

			var perms []agentid.Permission
			if result.Credential != nil {
				perms = result.Credential.Permissions
			}
			decision := permission.Check(perms, resource, action, nil)
			if !decision.Granted {
				writeJSONError(w, http.StatusForbidden, "PERMISSION_DENIED", decision.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
