// Package access holds the role hierarchy, the route guard decision and the
// tenant scope every data query is filtered by.
package access

import "reviewdesk/internal/models"

// AnyRole as a requirement admits every authenticated profile with a known role.
const AnyRole models.Role = ""

// HasAccess reports whether role satisfies required under
// super_admin > tenant_admin > user. Unknown roles never satisfy anything.
func HasAccess(role models.Role, required models.Role) bool {
	if !role.Valid() {
		return false
	}
	if required == AnyRole {
		return true
	}
	if !required.Valid() {
		return false
	}
	return role.Level() >= required.Level()
}

// CanAssignRole reports whether an actor holding actor may grant target to someone else.
// Nobody grants super_admin through the application.
func CanAssignRole(actor models.Role, target models.Role) bool {
	if !target.Valid() || target == models.RoleSuperAdmin {
		return false
	}
	switch actor {
	case models.RoleSuperAdmin:
		return true
	case models.RoleTenantAdmin:
		return target.Level() <= models.RoleTenantAdmin.Level()
	default:
		return false
	}
}
