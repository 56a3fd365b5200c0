package agentid_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
)

func TestPermissionUnmarshalMixedList(t *testing.T) {
	raw := `[
		"read",
		"*",
		{"resource": "payments/*", "actions": ["execute"], "conditions": {"max_transaction_amount": 1000}}
	]`

	var perms []agentid.Permission
	require.NoError(t, json.Unmarshal([]byte(raw), &perms))
	require.Len(t, perms, 3)

	assert.True(t, perms[0].IsLegacy())
	assert.Equal(t, "read", perms[0].Action)

	assert.True(t, perms[1].IsLegacy())
	assert.Equal(t, "*", perms[1].Action)

	assert.False(t, perms[2].IsLegacy())
	assert.Equal(t, "payments/*", perms[2].Resource)
	assert.Equal(t, []string{"execute"}, perms[2].Actions)
	require.NotNil(t, perms[2].Conditions)
	assert.Equal(t, 1000.0, perms[2].Conditions.MaxTransactionAmount)
}

func TestPermissionRoundTrip(t *testing.T) {
	raw := `["read",{"resource":"data/*","actions":["query","export"]}]`

	var perms []agentid.Permission
	require.NoError(t, json.Unmarshal([]byte(raw), &perms))

	out, err := json.Marshal(perms)
	require.NoError(t, err)

	// The legacy entry stays a bare string on the way back out.
	var reparsed []agentid.Permission
	require.NoError(t, json.Unmarshal(out, &reparsed))
	assert.Equal(t, perms, reparsed)
	assert.Contains(t, string(out), `"read"`)
}

func TestPermissionUnmarshalRejectsGarbage(t *testing.T) {
	var p agentid.Permission
	assert.Error(t, json.Unmarshal([]byte(`42`), &p))
}
