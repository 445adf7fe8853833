package services

import (
	"context"
	"errors"

	"reviewdesk/internal/access"
	"reviewdesk/internal/authclient"
	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileAdminService backs the user management screens of the master and
// tenant admin panels.
type ProfileAdminService interface {
	List(ctx context.Context, actor *models.Profile, filter *models.ProfileFilter) ([]*models.Profile, error)
	Get(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Profile, error)
	// ChangeRole sets role and tenant. Only super admins may move a profile
	// between tenants; nobody can grant super_admin.
	ChangeRole(ctx context.Context, actor *models.Profile, id uuid.UUID, req *ChangeRoleRequest) (*models.Profile, error)
	// SetStatus suspends, bans or reactivates a profile. Bans are forwarded
	// to the auth provider.
	SetStatus(ctx context.Context, actor *models.Profile, id uuid.UUID, status string) (*models.Profile, error)
}

type ChangeRoleRequest struct {
	Role     models.Role `json:"role"`
	TenantID *uuid.UUID  `json:"tenant_id"`
}

type profileAdminService struct {
	profiles repositories.ProfileRepository
	auth     authclient.Client
	resolver ProfileResolver
	audit    AuditLogsService
}

func NewProfileAdminService(profiles repositories.ProfileRepository, auth authclient.Client, resolver ProfileResolver, audit AuditLogsService) ProfileAdminService {
	return &profileAdminService{profiles: profiles, auth: auth, resolver: resolver, audit: audit}
}

func (s *profileAdminService) List(ctx context.Context, actor *models.Profile, filter *models.ProfileFilter) ([]*models.Profile, error) {
	if filter == nil {
		filter = &models.ProfileFilter{}
	}
	if err := requireRole(actor, models.RoleTenantAdmin); err != nil {
		return nil, err
	}
	if actor.IsSuperAdmin() {
		return s.profiles.List(ctx, filter)
	}

	scope, err := access.ScopeFor(actor, filter.TenantID)
	if err != nil {
		return nil, err
	}
	return s.profiles.ListByTenant(ctx, scope, filter.Limit, filter.Offset)
}

func (s *profileAdminService) Get(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Profile, error) {
	if err := requireRole(actor, models.RoleUser); err != nil {
		return nil, err
	}
	target, found, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found || !canSee(actor, target) {
		return nil, common.ErrNotFound
	}
	return target, nil
}

// canSee hides profiles of other tenants behind not-found.
func canSee(actor, target *models.Profile) bool {
	if actor.IsSuperAdmin() || actor.ID == target.ID {
		return true
	}
	if !access.HasAccess(actor.Role, models.RoleTenantAdmin) {
		return false
	}
	return actor.TenantID != nil && target.TenantID != nil && *actor.TenantID == *target.TenantID
}

// manageable loads target and checks that actor may modify it.
func (s *profileAdminService) manageable(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Profile, error) {
	if err := requireRole(actor, models.RoleTenantAdmin); err != nil {
		return nil, err
	}
	if actor.ID == id {
		return nil, errors.New("cannot change your own access")
	}
	target, found, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found || !canSee(actor, target) {
		return nil, common.ErrNotFound
	}
	if target.IsSuperAdmin() {
		return nil, common.ErrAccessDenied
	}
	if !actor.IsSuperAdmin() && !access.CanAssignRole(actor.Role, target.Role) {
		return nil, common.ErrAccessDenied
	}
	return target, nil
}

func (s *profileAdminService) ChangeRole(ctx context.Context, actor *models.Profile, id uuid.UUID, req *ChangeRoleRequest) (*models.Profile, error) {
	target, err := s.manageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !req.Role.Valid() || !access.CanAssignRole(actor.Role, req.Role) {
		return nil, common.ErrAccessDenied
	}

	tenantID := target.TenantID
	if req.TenantID != nil {
		if !actor.IsSuperAdmin() && (target.TenantID == nil || *req.TenantID != *target.TenantID) {
			return nil, common.ErrAccessDenied
		}
		tenantID = req.TenantID
	}
	if tenantID == nil {
		return nil, common.ErrTenantRequired
	}

	updated, err := s.profiles.UpdateRole(ctx, id, req.Role, tenantID)
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate(ctx, id)

	logAudit(ctx, s.audit, &models.AuditLog{
		TenantID:  tenantID,
		TableName: "profiles",
		RecordID:  id.String(),
		Action:    models.ActionRoleChange,
		NewValues: models.JSONB{"from_role": target.Role, "role": updated.Role, "tenant_id": tenantID},
		ChangedBy: actorID(actor),
	})
	return updated, nil
}

func (s *profileAdminService) SetStatus(ctx context.Context, actor *models.Profile, id uuid.UUID, status string) (*models.Profile, error) {
	switch status {
	case models.ProfileStatusActive, models.ProfileStatusSuspended, models.ProfileStatusBanned:
	default:
		return nil, errors.New("invalid profile status")
	}
	target, err := s.manageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if status == models.ProfileStatusBanned && s.auth != nil {
		if err := s.auth.BanUser(ctx, id); err != nil {
			return nil, err
		}
	}

	updated, err := s.profiles.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.resolver.Invalidate(ctx, id)

	logAudit(ctx, s.audit, &models.AuditLog{
		TenantID:  target.TenantID,
		TableName: "profiles",
		RecordID:  id.String(),
		Action:    models.ActionStatusChange,
		NewValues: models.JSONB{"from_status": target.Status, "status": status},
		ChangedBy: actorID(actor),
	})
	logger.FromContext(ctx).Info("profile status changed",
		zap.Stringer("profile_id", id), zap.String("status", status))
	return updated, nil
}
