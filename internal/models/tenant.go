package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
	TenantStatusPending   = "pending"
)

type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Domain    *string   `json:"domain" db:"domain"`
	Status    string    `json:"status" db:"status"`
	PlanType  string    `json:"plan_type" db:"plan_type"`
	Settings  JSONB     `json:"settings" db:"settings"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// ValidTenantStatus reports whether status is a known tenant status.
func ValidTenantStatus(status string) bool {
	switch status {
	case TenantStatusActive, TenantStatusSuspended, TenantStatusPending:
		return true
	}
	return false
}
