package models

import (
	"time"

	"github.com/google/uuid"
)

// BusinessSettings is the per-tenant configuration shown on invoices and the public review form.
type BusinessSettings struct {
	TenantID          uuid.UUID `json:"tenant_id" db:"tenant_id"`
	BusinessName      string    `json:"business_name" db:"business_name"`
	ContactEmail      *string   `json:"contact_email" db:"contact_email"`
	Phone             *string   `json:"phone" db:"phone"`
	Address           *string   `json:"address" db:"address"`
	ReviewRedirectURL *string   `json:"review_redirect_url" db:"review_redirect_url"`
	LogoObject        *string   `json:"logo_object" db:"logo_object"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
