package repositories

import (
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func strPtr(s string) *string {
	return &s
}

// expectTenantTx registers the BEGIN and set_config calls every scoped query starts with.
func expectTenantTx(mock pgxmock.PgxPoolIface, tenant string) {
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT set_config\('app.current_tenant', \$1, true\)`).
		WithArgs(tenant).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

// expectPlatformTx registers the BEGIN and bypass setting of unscoped lookups.
func expectPlatformTx(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT set_config\('app.bypass_rls', 'on', true\)`).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}
