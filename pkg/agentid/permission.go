package agentid

import (
	"encoding/json"
	"fmt"
)

// Permission is one entry of a credential's permission list. The wire
// format allows two shapes in the same list: a bare action string (the
// legacy form, e.g. "read" or "*") and a structured object with a resource
// pattern, an action set, and optional conditions. The union is resolved
// once at ingestion: exactly one of Action or Resource/Actions is
// populated.
type Permission struct {
	// Action is set for the legacy bare-string form. A legacy permission
	// grants when Action is "*" or equals the requested action; the
	// requested resource is not consulted.
	Action string

	// Resource is a glob-style pattern ("*" matches any run of
	// characters) anchored to the full resource string. Set for the
	// structured form.
	Resource string

	// Actions is the set of allowed action strings; "*" allows all.
	Actions []string

	// Conditions, when present, further restrict a structured grant.
	Conditions *PermissionConditions
}

// IsLegacy reports whether this is the bare action-string form.
func (p Permission) IsLegacy() bool {
	return p.Action != ""
}

// UnmarshalJSON resolves the string-vs-object union at ingestion.
func (p *Permission) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var action string
		if err := json.Unmarshal(data, &action); err != nil {
			return err
		}
		*p = Permission{Action: action}
		return nil
	}

	var structured struct {
		Resource   string                `json:"resource"`
		Actions    []string              `json:"actions"`
		Conditions *PermissionConditions `json:"conditions,omitempty"`
	}
	if err := json.Unmarshal(data, &structured); err != nil {
		return fmt.Errorf("invalid permission entry: %w", err)
	}
	*p = Permission{
		Resource:   structured.Resource,
		Actions:    structured.Actions,
		Conditions: structured.Conditions,
	}
	return nil
}

// MarshalJSON writes the legacy form back as a bare string so payloads
// round-trip unchanged.
func (p Permission) MarshalJSON() ([]byte, error) {
	if p.IsLegacy() {
		return json.Marshal(p.Action)
	}
	return json.Marshal(struct {
		Resource   string                `json:"resource"`
		Actions    []string              `json:"actions"`
		Conditions *PermissionConditions `json:"conditions,omitempty"`
	}{p.Resource, p.Actions, p.Conditions})
}

// PermissionConditions restrict when a structured permission applies.
//
// The evaluator enforces MaxTransactionAmount and AllowedRegions. The
// remaining fields are carried as data for callers that wire in their own
// collaborators (a rate limiter, an approval flow); without one they are
// informational only.
type PermissionConditions struct {
	// ValidHours is a time-of-day window, e.g. {"start":"09:00","end":"17:00"}.
	// Parsed but not enforced by the evaluator.
	ValidHours map[string]string `json:"valid_hours,omitempty"`

	// ValidDays lists allowed days of week. Parsed but not enforced.
	ValidDays []string `json:"valid_days,omitempty"`

	// Rate limits. Parsed but not enforced; enforcement needs a
	// rate-limiting collaborator with request history.
	MaxRequestsPerMinute int `json:"max_requests_per_minute,omitempty"`
	MaxRequestsPerDay    int `json:"max_requests_per_day,omitempty"`

	MaxRecordsPerRequest int      `json:"max_records_per_request,omitempty"`
	AllowedFields        []string `json:"allowed_fields,omitempty"`

	// AllowedRegions is enforced: a request context naming a region not
	// in this list is denied.
	AllowedRegions []string `json:"allowed_regions,omitempty"`

	// MaxTransactionAmount is enforced: a request context with an amount
	// above this limit is denied.
	MaxTransactionAmount float64 `json:"max_transaction_amount,omitempty"`

	DailySpendLimit  float64 `json:"daily_spend_limit,omitempty"`
	RequiresApproval bool    `json:"requires_approval,omitempty"`
	ApprovalWebhook  string  `json:"approval_webhook,omitempty"`
}
