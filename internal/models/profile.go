package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	ProfileStatusActive    = "active"
	ProfileStatusSuspended = "suspended"
	ProfileStatusBanned    = "banned"
)

// Profile binds an identity issued by the auth provider to a role and a tenant.
type Profile struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	FullName  string     `json:"full_name" db:"full_name"`
	Role      Role       `json:"role" db:"role"`
	TenantID  *uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Status    string     `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// NewDefaultProfile is the profile created for a bare signup with no invitation.
func NewDefaultProfile(identity Identity) *Profile {
	now := time.Now()
	return &Profile{
		ID:        identity.ID,
		Email:     identity.Email,
		FullName:  identity.FullName,
		Role:      RoleUser,
		Status:    ProfileStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the role/tenant invariant. A non-super profile without a
// tenant is allowed only when allowUnbound is set (fresh signup).
func (p *Profile) Validate(allowUnbound bool) error {
	if !p.Role.Valid() {
		return errors.New("unknown role")
	}
	if p.Role == RoleSuperAdmin {
		if p.TenantID != nil {
			return errors.New("super_admin profiles cannot belong to a tenant")
		}
		return nil
	}
	if p.TenantID == nil && !allowUnbound {
		return errors.New("tenant_id is required for " + p.Role.String())
	}
	return nil
}

func (p *Profile) IsActive() bool {
	return p.Status == "" || p.Status == ProfileStatusActive
}

func (p *Profile) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// ProfileFilter narrows profile listings in the admin panels.
type ProfileFilter struct {
	TenantID *uuid.UUID `query:"tenant_id"`
	Role     *Role      `query:"role"`
	Limit    int        `query:"limit"`
	Offset   int        `query:"offset"`
}
