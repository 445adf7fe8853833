package access

import (
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
)

// Scope is the tenant a query is allowed to read or write. An empty scope
// matches no rows and repositories return without touching the database.
type Scope struct {
	tenantID uuid.UUID
	public   bool
}

// TenantScope scopes to a single tenant.
func TenantScope(tenantID uuid.UUID) Scope {
	return Scope{tenantID: tenantID}
}

// PublicScope is used by unauthenticated review submission; the tenant comes
// from the route, not from a session.
func PublicScope(tenantID uuid.UUID) Scope {
	return Scope{tenantID: tenantID, public: true}
}

// EmptyScope matches nothing.
func EmptyScope() Scope {
	return Scope{}
}

func (s Scope) TenantID() uuid.UUID { return s.tenantID }

func (s Scope) IsEmpty() bool { return s.tenantID == uuid.Nil }

func (s Scope) IsPublic() bool { return s.public }

// String is the value handed to set_config('app.current_tenant', ...).
func (s Scope) String() string {
	if s.IsEmpty() {
		return ""
	}
	return s.tenantID.String()
}

// ScopeFor derives the data scope for profile.
//
// super_admin must name a tenant explicitly. Everyone else is pinned to their
// own tenant, and asking for a different one yields an empty scope rather
// than an error so the response is indistinguishable from "no rows".
func ScopeFor(profile *models.Profile, requested *uuid.UUID) (Scope, error) {
	if profile == nil {
		return EmptyScope(), common.ErrUnauthenticated
	}
	if !profile.Role.Valid() {
		return EmptyScope(), common.ErrAccessDenied
	}

	if profile.IsSuperAdmin() {
		if requested == nil || *requested == uuid.Nil {
			return EmptyScope(), common.ErrTenantRequired
		}
		return TenantScope(*requested), nil
	}

	if profile.TenantID == nil {
		return EmptyScope(), nil
	}
	if requested != nil && *requested != uuid.Nil && *requested != *profile.TenantID {
		return EmptyScope(), nil
	}
	return TenantScope(*profile.TenantID), nil
}
