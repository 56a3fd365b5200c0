// Package permission evaluates a credential's permission list against a
// requested resource and action.
//
// Evaluation is a pure function over its inputs: no shared mutable state,
// safe to call concurrently. Permissions are checked in the order given
// and the first match wins.
package permission

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentid-dev/agentid-go/pkg/agentid"
)

// Context carries runtime facts a permission's conditions are checked
// against. Zero values mean "not supplied": a zero Amount or empty Region
// skips the corresponding condition, it does not fail it.
type Context struct {
	// Amount is the transaction amount, checked against
	// max_transaction_amount.
	Amount float64

	// Region is the request's region, checked against allowed_regions.
	Region string
}

// Decision is the outcome of a permission check.
type Decision struct {
	Granted bool

	// Reason is set on denial.
	Reason string
}

// Check decides whether the permission list allows action on resource.
//
// Legacy bare-action permissions grant on an exact action match or "*"
// and never consult the resource. Structured permissions must match the
// resource pattern and the action set, then pass the enforced conditions
// (max_transaction_amount, allowed_regions). Time-window and rate-limit
// conditions are carried as data but not enforced here; see
// agentid.PermissionConditions.
func Check(perms []agentid.Permission, resource, action string, ctx *Context) Decision {
	for _, perm := range perms {
		if perm.IsLegacy() {
			if perm.Action == "*" || perm.Action == action {
				return Decision{Granted: true}
			}
			continue
		}

		if !MatchResource(perm.Resource, resource) {
			continue
		}
		if !actionAllowed(perm.Actions, action) {
			continue
		}

		if perm.Conditions != nil && ctx != nil {
			if denied, reason := checkConditions(perm.Conditions, ctx); denied {
				return Decision{Granted: false, Reason: reason}
			}
		}

		return Decision{Granted: true}
	}

	return Decision{
		Granted: false,
		Reason:  fmt.Sprintf("No permission for %s on %s", action, resource),
	}
}

func actionAllowed(actions []string, action string) bool {
	for _, a := range actions {
		if a == "*" || a == action {
			return true
		}
	}
	return false
}

// checkConditions evaluates the enforced condition kinds. It returns
// (true, reason) on the first violated condition.
func checkConditions(c *agentid.PermissionConditions, ctx *Context) (bool, string) {
	if c.MaxTransactionAmount > 0 && ctx.Amount > 0 && ctx.Amount > c.MaxTransactionAmount {
		return true, fmt.Sprintf("Amount %s exceeds limit %s",
			formatAmount(ctx.Amount), formatAmount(c.MaxTransactionAmount))
	}

	if len(c.AllowedRegions) > 0 && ctx.Region != "" {
		allowed := false
		for _, region := range c.AllowedRegions {
			if region == ctx.Region {
				allowed = true
				break
			}
		}
		if !allowed {
			return true, fmt.Sprintf("Region %s not allowed", ctx.Region)
		}
	}

	return false, ""
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// MatchResource reports whether resource matches the glob-style pattern:
// '*' matches any run of characters (including '/'), '?' matches one
// character, matching is case-sensitive and anchored to the full string.
func MatchResource(pattern, resource string) bool {
	if pattern == resource {
		return true
	}
	re, err := regexp.Compile(globToRegexp(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(resource)
}

func globToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}
