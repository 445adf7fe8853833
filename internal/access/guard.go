package access

import (
	"strings"

	"reviewdesk/internal/models"
)

// Outcome is the route guard verdict.
type Outcome int

const (
	// OutcomeLoading means identity or profile resolution is still in flight.
	OutcomeLoading Outcome = iota
	OutcomeAllow
	OutcomeRedirect
	// OutcomeDeny is a redirect that would point at the location being
	// evaluated; callers render nothing instead of navigating.
	OutcomeDeny
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeAllow:
		return "allow"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeDeny:
		return "deny"
	}
	return "unknown"
}

// Redirect reasons, also used as metric labels.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonNoProfile       = "no_profile"
	ReasonInactive        = "inactive_profile"
	ReasonTenantSuspended = "tenant_suspended"
	ReasonInsufficient    = "insufficient_role"
)

// GuardInput is everything the guard needs to decide about one location.
type GuardInput struct {
	Location        string
	Required        models.Role
	Resolving       bool
	Authenticated   bool
	Profile         *models.Profile
	TenantSuspended bool
	PublicEntry     string
}

// Decision is the result of Evaluate.
type Decision struct {
	Outcome  Outcome
	Location string
	Reason   string
}

// Evaluate runs the guard algorithm. It performs no I/O; the caller has
// already resolved identity and profile. No profile is consulted when the
// caller is not authenticated.
func Evaluate(in GuardInput) Decision {
	if in.Resolving {
		return Decision{Outcome: OutcomeLoading}
	}
	if !in.Authenticated {
		return redirect(in, ReasonUnauthenticated)
	}
	if in.Profile == nil {
		return redirect(in, ReasonNoProfile)
	}
	if !in.Profile.IsActive() {
		return redirect(in, ReasonInactive)
	}
	if in.TenantSuspended && !in.Profile.IsSuperAdmin() {
		return redirect(in, ReasonTenantSuspended)
	}
	if !HasAccess(in.Profile.Role, in.Required) {
		return redirect(in, ReasonInsufficient)
	}
	return Decision{Outcome: OutcomeAllow, Location: in.Location}
}

func redirect(in GuardInput, reason string) Decision {
	target := in.PublicEntry
	if target == "" {
		target = "/"
	}
	if SameLocation(target, in.Location) {
		return Decision{Outcome: OutcomeDeny, Location: in.Location, Reason: reason}
	}
	return Decision{Outcome: OutcomeRedirect, Location: target, Reason: reason}
}

// SameLocation compares two locations ignoring query, fragment and a trailing slash.
func SameLocation(a, b string) bool {
	return normalizeLocation(a) == normalizeLocation(b)
}

func normalizeLocation(loc string) string {
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	if len(loc) > 1 {
		loc = strings.TrimRight(loc, "/")
	}
	if loc == "" {
		loc = "/"
	}
	return loc
}
