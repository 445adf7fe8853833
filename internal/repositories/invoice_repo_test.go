package repositories

import (
	"context"
	"testing"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type InvoiceRepoTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	repo     InvoiceRepository
	tenantID uuid.UUID
	context  context.Context
}

func (suite *InvoiceRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock
	suite.repo = NewInvoiceRepo(mock)
	suite.tenantID = uuid.MustParse("9b2f64a4-1c2d-4e5f-8a9b-0c1d2e3f4a5b")
	suite.context = context.Background()
}

func (suite *InvoiceRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestInvoiceRepoTestSuite(t *testing.T) {
	suite.Run(t, new(InvoiceRepoTestSuite))
}

func (suite *InvoiceRepoTestSuite) TestCreate_AssignsSequentialNumber() {
	issued := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	invoice := &models.Invoice{
		CustomerName: "ACME",
		Amount:       100,
		TaxRate:      20,
		TaxAmount:    20,
		TotalAmount:  120,
		Status:       models.InvoiceStatusDraft,
		IssuedDate:   issued,
		DueDate:      issued.AddDate(0, 0, 30),
	}
	now := time.Now()

	expectTenantTx(suite.mock, suite.tenantID.String())
	suite.mock.ExpectQuery(`INSERT INTO invoice_sequences`).
		WithArgs(suite.tenantID, "2025-02").
		WillReturnRows(pgxmock.NewRows([]string{"last_number"}).AddRow(7))
	suite.mock.ExpectQuery(`INSERT INTO invoices`).
		WithArgs(pgxmock.AnyArg(), suite.tenantID, "INV-2e3f4a5b-2025-02-000007", "ACME", (*string)(nil), (*string)(nil),
			100.0, 20.0, 20.0, 120.0, models.InvoiceStatusDraft, issued, invoice.DueDate, (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	suite.mock.ExpectCommit()

	err := suite.repo.Create(suite.context, access.TenantScope(suite.tenantID), invoice)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "INV-2e3f4a5b-2025-02-000007", invoice.InvoiceNumber)
	assert.Equal(suite.T(), suite.tenantID, invoice.TenantID)
}

func (suite *InvoiceRepoTestSuite) TestGetByID_OtherTenantRowIsInvisible() {
	id := uuid.New()
	expectTenantTx(suite.mock, suite.tenantID.String())
	suite.mock.ExpectQuery(`FROM invoices WHERE tenant_id = \$1 AND id = \$2`).
		WithArgs(suite.tenantID, id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	suite.mock.ExpectCommit()

	inv, found, err := suite.repo.GetByID(suite.context, access.TenantScope(suite.tenantID), id)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), found)
	assert.Nil(suite.T(), inv)
}

func (suite *InvoiceRepoTestSuite) TestDelete_EmptyScope() {
	err := suite.repo.Delete(suite.context, access.EmptyScope(), uuid.New())
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *InvoiceRepoTestSuite) TestUpdateStatus_NoRowsIsNotFound() {
	id := uuid.New()
	expectTenantTx(suite.mock, suite.tenantID.String())
	suite.mock.ExpectExec(`UPDATE invoices SET status = \$1, paid_date = \$2`).
		WithArgs(models.InvoiceStatusPaid, (*time.Time)(nil), suite.tenantID, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	suite.mock.ExpectRollback()

	err := suite.repo.UpdateStatus(suite.context, access.TenantScope(suite.tenantID), id, models.InvoiceStatusPaid, nil)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *InvoiceRepoTestSuite) TestMarkOverdue() {
	asOf := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	expectTenantTx(suite.mock, suite.tenantID.String())
	suite.mock.ExpectExec(`UPDATE invoices SET status = \$1`).
		WithArgs(models.InvoiceStatusOverdue, suite.tenantID, models.InvoiceStatusUnpaid, asOf).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	suite.mock.ExpectCommit()

	n, err := suite.repo.MarkOverdue(suite.context, access.TenantScope(suite.tenantID), asOf)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(2), n)
}
