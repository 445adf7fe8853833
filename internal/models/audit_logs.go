package models

import (
	"time"

	"github.com/google/uuid"
)

// JSONB is a free-form JSON object column.
type JSONB map[string]interface{}

// AuditLog records a privileged change.
type AuditLog struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TenantID  *uuid.UUID `json:"tenant_id" db:"tenant_id"`
	TableName string     `json:"table_name" db:"table_name"`
	RecordID  string     `json:"record_id" db:"record_id"`
	Action    string     `json:"action" db:"action"`
	NewValues JSONB      `json:"new_values" db:"new_values"`
	ChangedBy *uuid.UUID `json:"changed_by" db:"changed_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Action constants for audit logs
const (
	ActionInsert        = "INSERT"
	ActionUpdate        = "UPDATE"
	ActionDelete        = "DELETE"
	ActionInvite        = "INVITE"
	ActionAccept        = "ACCEPT_INVITATION"
	ActionRoleChange    = "ROLE_CHANGE"
	ActionStatusChange  = "STATUS_CHANGE"
	ActionTenantCreated = "TENANT_CREATED"
	ActionAccessDenied  = "ACCESS_DENIED"
)

// AuditLogFilters represents filters for querying audit logs
type AuditLogFilters struct {
	TableName *string    `query:"table_name"`
	Action    *string    `query:"action"`
	ChangedBy *uuid.UUID `query:"changed_by"`
	StartDate *time.Time `query:"start_date"`
	EndDate   *time.Time `query:"end_date"`
	Limit     int        `query:"limit"`
	Offset    int        `query:"offset"`
}
