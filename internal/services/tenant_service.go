package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"reviewdesk/internal/caching"
	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TenantService interface {
	// Create is the master-panel tenant creation. When AdminEmail is set the
	// first admin is provisioned in the same transaction.
	Create(ctx context.Context, actor *models.Profile, req *CreateTenantRequest) (*CreateTenantResult, error)
	GetByID(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Tenant, error)
	Update(ctx context.Context, actor *models.Profile, req *UpdateTenantRequest) (*models.Tenant, error)
	SetStatus(ctx context.Context, actor *models.Profile, id uuid.UUID, status string) error
	List(ctx context.Context, actor *models.Profile, limit, offset int) ([]*models.Tenant, error)

	// IsSuspended feeds the route guard; it reads through the cache.
	IsSuspended(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
	cache      caching.CacheService
	audit      AuditLogsService
	links      InvitationLinks
	statusTTL  time.Duration
	now        func() time.Time
}

func NewTenantService(tenantRepo repositories.TenantRepository, cache caching.CacheService, audit AuditLogsService, links InvitationLinks, statusTTL time.Duration) TenantService {
	return &tenantService{
		tenantRepo: tenantRepo,
		cache:      cache,
		audit:      audit,
		links:      links,
		statusTTL:  statusTTL,
		now:        time.Now,
	}
}

type CreateTenantRequest struct {
	Name       string  `json:"name"`
	Domain     *string `json:"domain"`
	PlanType   string  `json:"plan_type"`
	AdminEmail string  `json:"admin_email"`
}

type UpdateTenantRequest struct {
	ID       uuid.UUID
	Name     string       `json:"name"`
	Domain   *string      `json:"domain"`
	PlanType string       `json:"plan_type"`
	Settings models.JSONB `json:"settings"`
}

// CreateTenantResult reports how the first admin was provisioned: either an
// existing profile was bound (Admin) or an invitation was issued.
type CreateTenantResult struct {
	Tenant     *models.Tenant    `json:"tenant"`
	Admin      *models.Profile   `json:"admin,omitempty"`
	Invitation *IssuedInvitation `json:"invitation,omitempty"`
}

func (s *tenantService) Create(ctx context.Context, actor *models.Profile, req *CreateTenantRequest) (*CreateTenantResult, error) {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, errors.New("name is required")
	}
	if req.Domain != nil && strings.ContainsAny(*req.Domain, " \t") {
		return nil, errors.New("domain cannot have spaces")
	}

	tenant := &models.Tenant{
		ID:       uuid.New(),
		Name:     req.Name,
		Domain:   req.Domain,
		Status:   models.TenantStatusActive,
		PlanType: req.PlanType,
	}
	result := &CreateTenantResult{Tenant: tenant}

	if req.AdminEmail == "" {
		if err := s.tenantRepo.Create(ctx, tenant); err != nil {
			return nil, err
		}
	} else {
		if err := common.ValidateEmail(req.AdminEmail); err != nil {
			return nil, err
		}
		invitation, token, err := s.links.newInvitation(req.AdminEmail, tenant.ID, models.RoleTenantAdmin, actorID(actor), s.now())
		if err != nil {
			return nil, err
		}
		admin, err := s.tenantRepo.CreateWithAdmin(ctx, tenant, invitation)
		if err != nil {
			return nil, err
		}
		if admin != nil {
			result.Admin = admin
			invalidateProfile(ctx, s.cache, admin.ID)
		} else {
			issued := &IssuedInvitation{Invitation: invitation, Token: token, AcceptURL: s.links.AcceptURL(token)}
			s.links.send(ctx, issued)
			result.Invitation = issued
		}
	}

	logAudit(ctx, s.audit, &models.AuditLog{
		TenantID:  &tenant.ID,
		TableName: "tenants",
		RecordID:  tenant.ID.String(),
		Action:    models.ActionTenantCreated,
		NewValues: models.JSONB{"name": tenant.Name, "admin_email": common.NormalizeEmail(req.AdminEmail)},
		ChangedBy: actorID(actor),
	})
	logger.FromContext(ctx).Info("tenant created",
		zap.Stringer("tenant_id", tenant.ID),
		zap.Bool("admin_bound", result.Admin != nil))
	return result, nil
}

func (s *tenantService) GetByID(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Tenant, error) {
	scope, err := tenantScope(actor, &id, models.RoleUser)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, common.ErrNotFound
	}
	tenant, found, err := s.tenantRepo.GetByID(ctx, scope.TenantID())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrNotFound
	}
	return tenant, nil
}

func (s *tenantService) Update(ctx context.Context, actor *models.Profile, req *UpdateTenantRequest) (*models.Tenant, error) {
	scope, err := tenantScope(actor, &req.ID, models.RoleTenantAdmin)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, common.ErrNotFound
	}
	existing, found, err := s.tenantRepo.GetByID(ctx, scope.TenantID())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrNotFound
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		existing.Name = name
	}
	if req.Domain != nil {
		existing.Domain = req.Domain
	}
	// plan changes belong to the master panel
	if req.PlanType != "" && actor.IsSuperAdmin() {
		existing.PlanType = req.PlanType
	}
	if req.Settings != nil {
		existing.Settings = req.Settings
	}

	if err := s.tenantRepo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *tenantService) SetStatus(ctx context.Context, actor *models.Profile, id uuid.UUID, status string) error {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return err
	}
	if !models.ValidTenantStatus(status) {
		return errors.New("invalid tenant status")
	}
	if err := s.tenantRepo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteTenantStatus(ctx, id); err != nil {
			logger.FromContext(ctx).Warn("failed to invalidate tenant status", zap.Stringer("tenant_id", id), zap.Error(err))
		}
	}

	logAudit(ctx, s.audit, &models.AuditLog{
		TenantID:  &id,
		TableName: "tenants",
		RecordID:  id.String(),
		Action:    models.ActionStatusChange,
		NewValues: models.JSONB{"status": status},
		ChangedBy: actorID(actor),
	})
	return nil
}

func (s *tenantService) List(ctx context.Context, actor *models.Profile, limit, offset int) ([]*models.Tenant, error) {
	if err := requireRole(actor, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.tenantRepo.List(ctx, limit, offset)
}

func (s *tenantService) IsSuspended(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	if s.cache != nil {
		status, err := s.cache.GetTenantStatus(ctx, tenantID)
		if err == nil && status != "" {
			return status == models.TenantStatusSuspended, nil
		}
	}

	tenant, found, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil && common.IsTransport(err) {
		// one retry, as for profile lookups
		logger.FromContext(ctx).Warn("tenant lookup failed, retrying", zap.Stringer("tenant_id", tenantID), zap.Error(err))
		tenant, found, err = s.tenantRepo.GetByID(ctx, tenantID)
	}
	if err != nil {
		return false, err
	}
	if !found {
		// a dangling tenant reference is treated like a suspended tenant
		return true, nil
	}
	if s.cache != nil && s.statusTTL > 0 {
		_ = s.cache.SetTenantStatus(ctx, tenantID, tenant.Status, s.statusTTL)
	}
	return tenant.Status == models.TenantStatusSuspended, nil
}
