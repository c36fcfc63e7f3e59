package rbac

import "net/netip"

// ConditionKind enumerates the closed set of rule conditions. The set is
// deliberately a tagged variant evaluated by exhaustive switch rather than
// a free-form map inspected at runtime.
type ConditionKind int

const (
	// CondTeamMismatch is true when the request's team is not one of the
	// condition's teams.
	CondTeamMismatch ConditionKind = iota
	// CondIPWhitelist is true when the request IP falls outside every
	// listed CIDR or address.
	CondIPWhitelist
	// CondTimeRestriction is true when the request timestamp falls outside
	// the [StartHour, EndHour) UTC window.
	CondTimeRestriction
	// CondRateLimitExceeded is true when the request context carries the
	// rate-limited marker set by the middleware.
	CondRateLimitExceeded
)

// RateLimitedContextKey is the AccessRequest.Context key the middleware
// sets when the request burned its last token.
const RateLimitedContextKey = "rate_limited"

// Condition gates a policy rule or permission. A condition that evaluates
// true means the guarded state holds and the rule applies.
type Condition struct {
	Kind      ConditionKind
	Teams     []string
	CIDRs     []string
	StartHour int
	EndHour   int
}

// evaluate reports whether the condition holds for req. Unknown kinds
// cannot occur by construction; the switch is exhaustive over the closed
// set.
func (c *Condition) evaluate(req AccessRequest) bool {
	if c == nil {
		return true
	}
	switch c.Kind {
	case CondTeamMismatch:
		// With no explicit team list the condition holds when the request
		// carries no team context at all.
		if len(c.Teams) == 0 {
			return req.TeamID == ""
		}
		for _, team := range c.Teams {
			if req.TeamID == team {
				return false
			}
		}
		return true
	case CondIPWhitelist:
		return !ipInList(req.IP, c.CIDRs)
	case CondTimeRestriction:
		hour := req.Timestamp.UTC().Hour()
		return hour < c.StartHour || hour >= c.EndHour
	case CondRateLimitExceeded:
		return req.Context[RateLimitedContextKey] == "true"
	}
	return false
}

func ipInList(ip string, list []string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, entry := range list {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			if prefix.Contains(addr) {
				return true
			}
			continue
		}
		if other, err := netip.ParseAddr(entry); err == nil && other == addr {
			return true
		}
	}
	return false
}
