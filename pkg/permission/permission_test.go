package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
	"github.com/agentid-dev/agentid-go/pkg/permission"
)

func structured(resource string, actions []string, cond *agentid.PermissionConditions) agentid.Permission {
	return agentid.Permission{Resource: resource, Actions: actions, Conditions: cond}
}

func TestLegacyPermissions(t *testing.T) {
	tests := []struct {
		name    string
		perms   []agentid.Permission
		action  string
		granted bool
	}{
		{"exact match", []agentid.Permission{{Action: "read"}}, "read", true},
		{"wildcard", []agentid.Permission{{Action: "*"}}, "anything", true},
		{"no match", []agentid.Permission{{Action: "read"}}, "write", false},
		{"second entry matches", []agentid.Permission{{Action: "read"}, {Action: "write"}}, "write", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := permission.Check(tt.perms, "any/resource", tt.action, nil)
			assert.Equal(t, tt.granted, d.Granted)
		})
	}
}

func TestLegacyIgnoresResource(t *testing.T) {
	perms := []agentid.Permission{{Action: "read"}}

	// A legacy grant applies to every resource.
	assert.True(t, permission.Check(perms, "payments/prod", "read", nil).Granted)
	assert.True(t, permission.Check(perms, "", "read", nil).Granted)
}

func TestResourceGlob(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		resource string
		match    bool
	}{
		{"exact", "payments", "payments", true},
		{"star suffix", "payments/*", "payments/prod", true},
		{"star crosses separators", "payments/*", "payments/a/b/c", true},
		{"star alone", "*", "anything/at/all", true},
		{"prefix mismatch", "payments/*", "billing/prod", false},
		{"anchored", "payments", "payments/prod", false},
		{"case sensitive", "Payments", "payments", false},
		{"question mark", "env-?", "env-1", true},
		{"question mark one char", "env-?", "env-12", false},
		{"interior star", "data/*/export", "data/eu/export", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, permission.MatchResource(tt.pattern, tt.resource))
		})
	}
}

func TestStructuredActions(t *testing.T) {
	perms := []agentid.Permission{structured("data/*", []string{"query", "export"}, nil)}

	assert.True(t, permission.Check(perms, "data/eu", "query", nil).Granted)
	assert.True(t, permission.Check(perms, "data/eu", "export", nil).Granted)
	assert.False(t, permission.Check(perms, "data/eu", "delete", nil).Granted)

	wildcard := []agentid.Permission{structured("data/*", []string{"*"}, nil)}
	assert.True(t, permission.Check(wildcard, "data/eu", "delete", nil).Granted)
}

func TestFirstMatchWins(t *testing.T) {
	perms := []agentid.Permission{
		structured("payments/*", []string{"execute"}, &agentid.PermissionConditions{MaxTransactionAmount: 100}),
		structured("payments/*", []string{"execute"}, nil),
	}

	// The first matching permission's conditions decide; the later
	// unconditional grant is never reached.
	d := permission.Check(perms, "payments/prod", "execute", &permission.Context{Amount: 500})
	assert.False(t, d.Granted)
	assert.Equal(t, "Amount 500 exceeds limit 100", d.Reason)
}

func TestAmountCondition(t *testing.T) {
	perms := []agentid.Permission{
		structured("payments/*", []string{"execute"}, &agentid.PermissionConditions{MaxTransactionAmount: 1000}),
	}

	assert.True(t, permission.Check(perms, "payments/prod", "execute", &permission.Context{Amount: 999.99}).Granted)
	assert.True(t, permission.Check(perms, "payments/prod", "execute", &permission.Context{Amount: 1000}).Granted)

	d := permission.Check(perms, "payments/prod", "execute", &permission.Context{Amount: 1000.01})
	assert.False(t, d.Granted)
	assert.Equal(t, "Amount 1000.01 exceeds limit 1000", d.Reason)
}

func TestAmountConditionSkippedWithoutContext(t *testing.T) {
	perms := []agentid.Permission{
		structured("payments/*", []string{"execute"}, &agentid.PermissionConditions{MaxTransactionAmount: 1000}),
	}

	// No context, or a context without an amount, skips the check.
	assert.True(t, permission.Check(perms, "payments/prod", "execute", nil).Granted)
	assert.True(t, permission.Check(perms, "payments/prod", "execute", &permission.Context{}).Granted)
}

func TestRegionCondition(t *testing.T) {
	perms := []agentid.Permission{
		structured("data/*", []string{"query"}, &agentid.PermissionConditions{AllowedRegions: []string{"eu", "us"}}),
	}

	assert.True(t, permission.Check(perms, "data/x", "query", &permission.Context{Region: "eu"}).Granted)

	d := permission.Check(perms, "data/x", "query", &permission.Context{Region: "apac"})
	assert.False(t, d.Granted)
	assert.Equal(t, "Region apac not allowed", d.Reason)

	// Empty region skips the check.
	assert.True(t, permission.Check(perms, "data/x", "query", &permission.Context{}).Granted)
}

func TestUnenforcedConditionsDoNotDeny(t *testing.T) {
	perms := []agentid.Permission{
		structured("data/*", []string{"query"}, &agentid.PermissionConditions{
			ValidHours:           map[string]string{"start": "09:00", "end": "17:00"},
			MaxRequestsPerMinute: 10,
		}),
	}
	assert.True(t, permission.Check(perms, "data/x", "query", &permission.Context{}).Granted)
}

func TestDenyReason(t *testing.T) {
	d := permission.Check(nil, "payments/prod", "execute", nil)
	assert.False(t, d.Granted)
	assert.Equal(t, "No permission for execute on payments/prod", d.Reason)
}
