package models

// Role is the closed set of authorization roles a profile can hold.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleTenantAdmin Role = "tenant_admin"
	RoleUser        Role = "user"
)

// Level orders roles for hierarchy checks. Unknown roles are level 0.
func (r Role) Level() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleTenantAdmin:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Level() > 0
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a stored or submitted role string into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}
