package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, bool, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)

	// CreateWithAdmin creates the tenant and provisions its first admin in one
	// transaction. An existing unbound profile for the admin email is bound
	// directly and returned; otherwise the invitation is stored and the
	// returned profile is nil.
	CreateWithAdmin(ctx context.Context, tenant *models.Tenant, invitation *models.Invitation) (*models.Profile, error)
}

type tenantRepo struct {
	db DBTX
}

func NewTenantRepo(db DBTX) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, name, domain, status, plan_type, settings, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	var settings []byte
	if err := row.Scan(&tenant.ID, &tenant.Name, &tenant.Domain, &tenant.Status, &tenant.PlanType, &settings, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &tenant.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant settings: %w", err)
		}
	}
	return tenant, nil
}

func marshalSettings(settings models.JSONB) ([]byte, error) {
	if settings == nil {
		return []byte(`{}`), nil
	}
	b, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tenant settings: %w", err)
	}
	return b, nil
}

func insertTenant(ctx context.Context, q Querier, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	if tenant.Status == "" {
		tenant.Status = models.TenantStatusActive
	}
	if tenant.PlanType == "" {
		tenant.PlanType = "basic"
	}
	settings, err := marshalSettings(tenant.Settings)
	if err != nil {
		return err
	}
	now := time.Now()
	tenant.CreatedAt, tenant.UpdatedAt = now, now

	query := `
		INSERT INTO tenants (id, name, domain, status, plan_type, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = q.Exec(ctx, query, tenant.ID, tenant.Name, tenant.Domain, tenant.Status, tenant.PlanType, settings, tenant.CreatedAt, tenant.UpdatedAt)
	return wrapErr("tenants.create", err)
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	return insertTenant(ctx, r.db, tenant)
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, bool, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	tenant, err := scanTenant(r.db.QueryRow(ctx, query, id))
	found, err := optional("tenants.get", err)
	if !found {
		return nil, false, err
	}
	return tenant, true, nil
}

func (r *tenantRepo) Update(ctx context.Context, tenant *models.Tenant) error {
	settings, err := marshalSettings(tenant.Settings)
	if err != nil {
		return err
	}
	query := `
		UPDATE tenants
		SET name = $1, domain = $2, plan_type = $3, settings = $4, updated_at = NOW()
		WHERE id = $5
	`
	tag, err := r.db.Exec(ctx, query, tenant.Name, tenant.Domain, tenant.PlanType, settings, tenant.ID)
	if err != nil {
		return wrapErr("tenants.update", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *tenantRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE tenants SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return wrapErr("tenants.update_status", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, wrapErr("tenants.list", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, wrapErr("tenants.list", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, wrapErr("tenants.list", rows.Err())
}

func (r *tenantRepo) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM tenants WHERE status = $1 ORDER BY id`, models.TenantStatusActive)
	if err != nil {
		return nil, wrapErr("tenants.list_active", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("tenants.list_active", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapErr("tenants.list_active", rows.Err())
}

func (r *tenantRepo) CreateWithAdmin(ctx context.Context, tenant *models.Tenant, invitation *models.Invitation) (*models.Profile, error) {
	var bound *models.Profile
	// the existing profile may belong to no tenant yet, so the lookup is unscoped
	err := inPlatformTx(ctx, r.db, "tenants.create_with_admin", func(tx pgx.Tx) error {
		if err := insertTenant(ctx, tx, tenant); err != nil {
			return err
		}

		query := `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = lower($1) FOR UPDATE`
		existing, err := scanProfile(tx.QueryRow(ctx, query, invitation.Email))
		found, err := optional("tenants.create_with_admin.profile", err)
		if err != nil {
			return err
		}

		if found {
			if existing.TenantID != nil || existing.Role != models.RoleUser {
				return fmt.Errorf("%s is already bound: %w", invitation.Email, common.ErrConflict)
			}
			update := `
				UPDATE profiles SET role = $1, tenant_id = $2, updated_at = NOW()
				WHERE id = $3
				RETURNING ` + profileColumns
			bound, err = scanProfile(tx.QueryRow(ctx, update, models.RoleTenantAdmin, tenant.ID, existing.ID))
			return wrapErr("tenants.create_with_admin.bind", err)
		}

		invitation.TenantID = tenant.ID
		invitation.Role = models.RoleTenantAdmin
		return insertInvitation(ctx, tx, invitation)
	})
	if err != nil {
		return nil, err
	}
	return bound, nil
}
