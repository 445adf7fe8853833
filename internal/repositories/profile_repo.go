package repositories

import (
	"context"
	"errors"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
)

type ProfileRepository interface {
	// GetByID returns found=false when no profile exists for the identity.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, bool, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, bool, error)
	// CreateDefault inserts the profile unless one already exists and returns the stored row.
	CreateDefault(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	List(ctx context.Context, filter *models.ProfileFilter) ([]*models.Profile, error)
	ListByTenant(ctx context.Context, scope access.Scope, limit, offset int) ([]*models.Profile, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, tenantID *uuid.UUID) (*models.Profile, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Profile, error)
}

type profileRepo struct {
	db DBTX
}

func NewProfileRepo(db DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

const profileColumns = `id, email, full_name, role, tenant_id, status, created_at, updated_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &p.TenantID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func collectProfiles(rows pgx.Rows) ([]*models.Profile, error) {
	defer rows.Close()
	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// getOne runs a single-row profile query outside any tenant scope. Profiles
// are looked up by identity before the tenant is known.
func (r *profileRepo) getOne(ctx context.Context, op, query string, args ...any) (*models.Profile, bool, error) {
	var p *models.Profile
	var found bool
	err := inPlatformTx(ctx, r.db, op, func(tx pgx.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRow(ctx, query, args...))
		found, err = optional(op, err)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return p, true, nil
}

// writeOne runs a single-row profile write returning the stored row.
func (r *profileRepo) writeOne(ctx context.Context, op, query string, args ...any) (*models.Profile, error) {
	var p *models.Profile
	err := inPlatformTx(ctx, r.db, op, func(tx pgx.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRow(ctx, query, args...))
		return wrapErr(op, err)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *profileRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, bool, error) {
	return r.getOne(ctx, "profiles.get", `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
}

func (r *profileRepo) GetByEmail(ctx context.Context, email string) (*models.Profile, bool, error) {
	return r.getOne(ctx, "profiles.get_by_email", `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1)`, email)
}

func (r *profileRepo) CreateDefault(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	if err := profile.Validate(true); err != nil {
		return nil, err
	}
	// A concurrent sign-in may have created the row; DO UPDATE with a no-op
	// keeps RETURNING populated in both cases.
	query := `
		INSERT INTO profiles (id, email, full_name, role, tenant_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET id = profiles.id
		RETURNING ` + profileColumns
	return r.writeOne(ctx, "profiles.create", query,
		profile.ID, common.NormalizeEmail(profile.Email), profile.FullName, profile.Role, profile.TenantID, models.ProfileStatusActive)
}

// List is the master panel listing across tenants.
func (r *profileRepo) List(ctx context.Context, filter *models.ProfileFilter) ([]*models.Profile, error) {
	if filter == nil {
		filter = &models.ProfileFilter{}
	}
	limit, offset, err := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE ($1::uuid IS NULL OR tenant_id = $1)
		  AND ($2::text IS NULL OR role = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	var role *string
	if filter.Role != nil {
		s := filter.Role.String()
		role = &s
	}
	var profiles []*models.Profile
	err = inPlatformTx(ctx, r.db, "profiles.list", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, filter.TenantID, role, limit, offset)
		if err != nil {
			return wrapErr("profiles.list", err)
		}
		profiles, err = collectProfiles(rows)
		return wrapErr("profiles.list", err)
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepo) ListByTenant(ctx context.Context, scope access.Scope, limit, offset int) ([]*models.Profile, error) {
	if scope.IsEmpty() {
		return []*models.Profile{}, nil
	}
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var profiles []*models.Profile
	err = inTenantTx(ctx, r.db, scope, "profiles.list_by_tenant", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, scope.TenantID(), limit, offset)
		if err != nil {
			return wrapErr("profiles.list_by_tenant", err)
		}
		profiles, err = collectProfiles(rows)
		return wrapErr("profiles.list_by_tenant", err)
	})
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateRole may move a profile between tenants, so it runs unscoped; the
// service layer decides who may call it.
func (r *profileRepo) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, tenantID *uuid.UUID) (*models.Profile, error) {
	candidate := &models.Profile{ID: id, Role: role, TenantID: tenantID}
	if err := candidate.Validate(false); err != nil {
		return nil, err
	}
	query := `
		UPDATE profiles
		SET role = $1, tenant_id = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + profileColumns
	return r.writeOne(ctx, "profiles.update_role", query, role, tenantID, id)
}

func (r *profileRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + profileColumns
	return r.writeOne(ctx, "profiles.update_status", query, status, id)
}

// upsertBoundProfile writes the role and tenant granted by an invitation.
// Existing super_admin profiles are never rebound; the caller gets ErrAccessDenied.
func upsertBoundProfile(ctx context.Context, q Querier, identity models.Identity, role models.Role, tenantID uuid.UUID) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (id, email, full_name, role, tenant_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role, tenant_id = EXCLUDED.tenant_id, updated_at = NOW()
		WHERE profiles.role <> 'super_admin'
		RETURNING ` + profileColumns
	p, err := scanProfile(q.QueryRow(ctx, query,
		identity.ID, common.NormalizeEmail(identity.Email), identity.FullName, role, tenantID, models.ProfileStatusActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrAccessDenied
		}
		return nil, wrapErr("profiles.bind", err)
	}
	return p, nil
}
