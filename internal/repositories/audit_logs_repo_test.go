package repositories

import (
	"context"
	"testing"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogsRepo_CreatePlatformEntryBypassesTenantScope(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	actor := uuid.New()
	entry := &models.AuditLog{TableName: "tenants", RecordID: "t1", Action: models.ActionTenantCreated, ChangedBy: &actor}

	expectPlatformTx(mock)
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs(pgxmock.AnyArg(), (*uuid.UUID)(nil), "tenants", "t1", models.ActionTenantCreated, []byte(nil), &actor, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewAuditLogsRepo(mock)
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogsRepo_ListDecodesValues(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenant := uuid.New()
	now := time.Now()

	expectTenantTx(mock, tenant.String())
	mock.ExpectQuery(`FROM audit_logs`).
		WithArgs(tenant, (*string)(nil), (*string)(nil), (*uuid.UUID)(nil), (*time.Time)(nil), (*time.Time)(nil), 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "table_name", "record_id", "action", "new_values", "changed_by", "created_at"}).
			AddRow(uuid.New(), &tenant, "invitations", "i1", models.ActionInvite, []byte(`{"email":"x@example.com"}`), nil, now))
	mock.ExpectCommit()

	repo := NewAuditLogsRepo(mock)
	logs, err := repo.List(context.Background(), access.TenantScope(tenant), nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "x@example.com", logs[0].NewValues["email"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
