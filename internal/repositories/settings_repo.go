package repositories

import (
	"context"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	pgx "github.com/jackc/pgx/v5"
)

type SettingsRepository interface {
	Get(ctx context.Context, scope access.Scope) (*models.BusinessSettings, bool, error)
	Upsert(ctx context.Context, scope access.Scope, settings *models.BusinessSettings) (*models.BusinessSettings, error)
	SetLogo(ctx context.Context, scope access.Scope, object string) error
}

type settingsRepo struct {
	db DBTX
}

func NewSettingsRepo(db DBTX) SettingsRepository {
	return &settingsRepo{db: db}
}

const settingsColumns = `tenant_id, business_name, contact_email, phone, address, review_redirect_url, logo_object, updated_at`

func scanSettings(row pgx.Row) (*models.BusinessSettings, error) {
	s := &models.BusinessSettings{}
	if err := row.Scan(&s.TenantID, &s.BusinessName, &s.ContactEmail, &s.Phone, &s.Address, &s.ReviewRedirectURL, &s.LogoObject, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *settingsRepo) Get(ctx context.Context, scope access.Scope) (*models.BusinessSettings, bool, error) {
	if scope.IsEmpty() {
		return nil, false, nil
	}
	var settings *models.BusinessSettings
	var found bool
	err := inTenantTx(ctx, r.db, scope, "settings.get", func(tx pgx.Tx) error {
		s, err := scanSettings(tx.QueryRow(ctx, `SELECT `+settingsColumns+` FROM business_settings WHERE tenant_id = $1`, scope.TenantID()))
		found, err = optional("settings.get", err)
		settings = s
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return settings, true, nil
}

func (r *settingsRepo) Upsert(ctx context.Context, scope access.Scope, settings *models.BusinessSettings) (*models.BusinessSettings, error) {
	if scope.IsEmpty() {
		return nil, common.ErrAccessDenied
	}
	var stored *models.BusinessSettings
	err := inTenantTx(ctx, r.db, scope, "settings.upsert", func(tx pgx.Tx) error {
		query := `
			INSERT INTO business_settings (tenant_id, business_name, contact_email, phone, address, review_redirect_url, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (tenant_id) DO UPDATE
			SET business_name = EXCLUDED.business_name,
				contact_email = EXCLUDED.contact_email,
				phone = EXCLUDED.phone,
				address = EXCLUDED.address,
				review_redirect_url = EXCLUDED.review_redirect_url,
				updated_at = NOW()
			RETURNING ` + settingsColumns
		s, err := scanSettings(tx.QueryRow(ctx, query, scope.TenantID(), settings.BusinessName, settings.ContactEmail,
			settings.Phone, settings.Address, settings.ReviewRedirectURL))
		if err != nil {
			return wrapErr("settings.upsert", err)
		}
		stored = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *settingsRepo) SetLogo(ctx context.Context, scope access.Scope, object string) error {
	if scope.IsEmpty() {
		return common.ErrNotFound
	}
	return inTenantTx(ctx, r.db, scope, "settings.set_logo", func(tx pgx.Tx) error {
		query := `
			INSERT INTO business_settings (tenant_id, business_name, logo_object, updated_at)
			VALUES ($1, '', $2, NOW())
			ON CONFLICT (tenant_id) DO UPDATE SET logo_object = EXCLUDED.logo_object, updated_at = NOW()
		`
		_, err := tx.Exec(ctx, query, scope.TenantID(), object)
		return wrapErr("settings.set_logo", err)
	})
}
