package services

import (
	"context"
	"errors"
	"time"

	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"

	"github.com/google/uuid"
)

type AuditLogsService interface {
	// Record stores an entry. A nil TenantID marks a platform-level change.
	Record(ctx context.Context, entry *models.AuditLog) error

	// List returns a tenant's audit trail. Tenant admins see their own
	// tenant; super admins pass the tenant they want.
	List(ctx context.Context, actor *models.Profile, requested *uuid.UUID, filters *models.AuditLogFilters) ([]*models.AuditLog, error)
}

type auditLogsService struct {
	auditLogsRepo repositories.AuditLogsRepository
}

func NewAuditLogsService(auditLogsRepo repositories.AuditLogsRepository) AuditLogsService {
	return &auditLogsService{auditLogsRepo: auditLogsRepo}
}

func (s *auditLogsService) Record(ctx context.Context, entry *models.AuditLog) error {
	if entry.TableName == "" {
		return errors.New("table_name is required")
	}
	if entry.Action == "" {
		return errors.New("action is required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return s.auditLogsRepo.Create(ctx, entry)
}

func (s *auditLogsService) List(ctx context.Context, actor *models.Profile, requested *uuid.UUID, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	scope, err := tenantScope(actor, requested, models.RoleTenantAdmin)
	if err != nil {
		return nil, err
	}
	if err := ValidateAuditFilters(filters); err != nil {
		return nil, err
	}
	return s.auditLogsRepo.List(ctx, scope, filters)
}

// ValidateAuditFilters bounds the date range and page size.
func ValidateAuditFilters(filters *models.AuditLogFilters) error {
	if filters == nil {
		return nil
	}
	if filters.StartDate != nil && filters.EndDate != nil {
		if filters.StartDate.After(*filters.EndDate) {
			return errors.New("start_date cannot be after end_date")
		}
		if filters.EndDate.Sub(*filters.StartDate) > 365*24*time.Hour {
			return errors.New("date range cannot exceed 1 year")
		}
	}
	if filters.Limit > 500 {
		return errors.New("maximum limit is 500 records")
	}
	return nil
}
