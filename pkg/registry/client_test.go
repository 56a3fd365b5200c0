package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/registry"
)

func verifyHandler(t *testing.T, status int, body interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/verify", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req["credential_id"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

func TestVerifyValid(t *testing.T) {
	srv := httptest.NewServer(verifyHandler(t, http.StatusOK, map[string]interface{}{
		"valid": true,
		"credential": map[string]interface{}{
			"credential_id": "cred_1",
			"agent_name":    "Test Agent",
		},
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "")
	result, err := client.Verify(context.Background(), "cred_1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Credential)
	assert.Equal(t, "Test Agent", result.Credential.AgentName)
}

func TestVerifyInvalidCredentialIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(verifyHandler(t, http.StatusOK, map[string]interface{}{
		"valid":      false,
		"error":      "Credential has been revoked",
		"error_code": "CREDENTIAL_REVOKED",
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "")
	result, err := client.Verify(context.Background(), "cred_1")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, agentid.ErrCodeCredentialRevoked, result.ErrorCode)
}

func TestVerifyRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "")
	_, err := client.Verify(context.Background(), "cred_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentid.ErrRateLimited))

	e, ok := agentid.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 17*time.Second, e.RetryAfter)
}

func TestVerifyNetworkError(t *testing.T) {
	client := registry.NewClient("http://127.0.0.1:1", "")
	_, err := client.Verify(context.Background(), "cred_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentid.ErrNetwork))
}

func TestFetchCredentialNotFound(t *testing.T) {
	srv := httptest.NewServer(verifyHandler(t, http.StatusNotFound, map[string]interface{}{
		"valid": false,
		"error": "not found",
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "")
	_, err := client.FetchCredential(context.Background(), "cred_missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentid.ErrNotFound))
}

func TestFetchCredentialNotFoundByBodyCode(t *testing.T) {
	srv := httptest.NewServer(verifyHandler(t, http.StatusOK, map[string]interface{}{
		"valid":      false,
		"error_code": "CREDENTIAL_NOT_FOUND",
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "")
	_, err := client.FetchCredential(context.Background(), "cred_missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentid.ErrNotFound))
}

func TestFetchCredentialUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "bad-key")
	_, err := client.FetchCredential(context.Background(), "cred_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentid.ErrAuthentication))
}

func TestClientSendsAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"valid": true, "credential": map[string]interface{}{"credential_id": "cred_1"}})
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "sk_test_123")
	_, err := client.FetchCredential(context.Background(), "cred_1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk_test_123", gotAuth)
}

func TestRevocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/revocations", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		assert.Equal(t, "cred_1,cred_2", r.URL.Query().Get("credential_ids"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"revocations": []map[string]string{
				{"credential_id": "cred_1", "revoked_at": "2026-08-28T00:00:00Z", "reason": "compromised"},
			},
		})
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "")
	events, err := client.Revocations(context.Background(), time.Now().Add(-time.Hour), []string{"cred_1", "cred_2"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cred_1", events[0].CredentialID)
	assert.Equal(t, "compromised", events[0].Reason)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/registry", r.URL.Path)
		assert.Equal(t, "travel", r.URL.Query().Get("query"))
		assert.Equal(t, "50", r.URL.Query().Get("min_trust_score"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"agents": []map[string]interface{}{{"id": "reg_1", "display_name": "Travel Bot"}},
			"total":  1,
		})
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "")
	resp, err := client.Search(context.Background(), registry.SearchOptions{Query: "travel", MinTrustScore: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Agents, 1)
	assert.Equal(t, "Travel Bot", resp.Agents[0].DisplayName)
}

func TestGetAgentMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "")
	agent, err := client.GetAgent(context.Background(), "cred_ghost")
	require.NoError(t, err)
	assert.Nil(t, agent)
}

func TestRegisterRequiresAPIKey(t *testing.T) {
	client := registry.NewClient("http://unused", "")
	_, err := client.Register(context.Background(), registry.RegistrationOptions{CredentialID: "cred_1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, agentid.ErrAuthentication))
}

func TestRegisterSendsIdempotencyKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		json.NewEncoder(w).Encode(map[string]string{"registry_id": "reg_42"})
	}))
	defer srv.Close()

	client := registry.NewClient(srv.URL, "sk_test")
	id, err := client.Register(context.Background(), registry.RegistrationOptions{
		CredentialID: "cred_1",
		DisplayName:  "Test Agent",
	})
	require.NoError(t, err)
	assert.Equal(t, "reg_42", id)
	assert.NotEmpty(t, gotKey)
}
