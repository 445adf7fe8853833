package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
)

type AuditLogsRepository interface {
	// Create records an entry. Entries without a tenant are platform-level
	// (tenant creation, role changes by super_admin).
	Create(ctx context.Context, auditLog *models.AuditLog) error

	// List audit logs of one tenant with filtering options
	List(ctx context.Context, scope access.Scope, filters *models.AuditLogFilters) ([]*models.AuditLog, error)
}

type auditLogsRepo struct {
	db DBTX
}

func NewAuditLogsRepo(db DBTX) AuditLogsRepository {
	return &auditLogsRepo{db: db}
}

func (r *auditLogsRepo) Create(ctx context.Context, auditLog *models.AuditLog) error {
	auditLog.CreatedAt = time.Now()
	if auditLog.ID == uuid.Nil {
		auditLog.ID = uuid.New()
	}

	var newValuesBytes []byte
	if auditLog.NewValues != nil {
		b, err := json.Marshal(auditLog.NewValues)
		if err != nil {
			return fmt.Errorf("failed to marshal new_values: %w", err)
		}
		newValuesBytes = b
	}

	write := func(fn func(tx pgx.Tx) error) error {
		// platform entries belong to no tenant
		if auditLog.TenantID == nil {
			return inPlatformTx(ctx, r.db, "audit_logs.create", fn)
		}
		return inTenantTx(ctx, r.db, access.TenantScope(*auditLog.TenantID), "audit_logs.create", fn)
	}

	return write(func(tx pgx.Tx) error {
		query := `
			INSERT INTO audit_logs (id, tenant_id, table_name, record_id, action, new_values, changed_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := tx.Exec(ctx, query,
			auditLog.ID,
			auditLog.TenantID,
			auditLog.TableName,
			auditLog.RecordID,
			auditLog.Action,
			newValuesBytes,
			auditLog.ChangedBy,
			auditLog.CreatedAt,
		)
		return wrapErr("audit_logs.create", err)
	})
}

func (r *auditLogsRepo) List(ctx context.Context, scope access.Scope, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	if scope.IsEmpty() {
		return []*models.AuditLog{}, nil
	}
	if filters == nil {
		filters = &models.AuditLogFilters{}
	}
	limit, offset, err := common.ValidatePaginationParams(filters.Limit, filters.Offset)
	if err != nil {
		return nil, err
	}

	var logs []*models.AuditLog
	err = inTenantTx(ctx, r.db, scope, "audit_logs.list", func(tx pgx.Tx) error {
		query := `
			SELECT id, tenant_id, table_name, record_id, action, new_values, changed_by, created_at
			FROM audit_logs
			WHERE tenant_id = $1
			  AND ($2::text IS NULL OR table_name = $2)
			  AND ($3::text IS NULL OR action = $3)
			  AND ($4::uuid IS NULL OR changed_by = $4)
			  AND ($5::timestamptz IS NULL OR created_at >= $5)
			  AND ($6::timestamptz IS NULL OR created_at <= $6)
			ORDER BY created_at DESC
			LIMIT $7 OFFSET $8
		`
		rows, err := tx.Query(ctx, query, scope.TenantID(), filters.TableName, filters.Action, filters.ChangedBy,
			filters.StartDate, filters.EndDate, limit, offset)
		if err != nil {
			return wrapErr("audit_logs.list", err)
		}
		defer rows.Close()

		for rows.Next() {
			entry := &models.AuditLog{}
			var newValuesBytes []byte
			if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.TableName, &entry.RecordID, &entry.Action,
				&newValuesBytes, &entry.ChangedBy, &entry.CreatedAt); err != nil {
				return wrapErr("audit_logs.list", err)
			}
			if len(newValuesBytes) > 0 {
				if err := json.Unmarshal(newValuesBytes, &entry.NewValues); err != nil {
					return fmt.Errorf("failed to unmarshal new_values: %w", err)
				}
			}
			logs = append(logs, entry)
		}
		return wrapErr("audit_logs.list", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}
