package repositories

import (
	"context"
	"fmt"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
)

type InvoiceRepository interface {
	// Create assigns the next invoice number when the invoice has none.
	Create(ctx context.Context, scope access.Scope, invoice *models.Invoice) error
	GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Invoice, bool, error)
	Update(ctx context.Context, scope access.Scope, invoice *models.Invoice) error
	Delete(ctx context.Context, scope access.Scope, id uuid.UUID) error
	List(ctx context.Context, scope access.Scope, filter *models.InvoiceFilter) ([]*models.Invoice, error)
	UpdateStatus(ctx context.Context, scope access.Scope, id uuid.UUID, status string, paidDate *time.Time) error
	SetPDFObject(ctx context.Context, scope access.Scope, id uuid.UUID, object string) error
	// MarkOverdue flips unpaid invoices due before asOf to overdue.
	MarkOverdue(ctx context.Context, scope access.Scope, asOf time.Time) (int64, error)
}

type invoiceRepo struct {
	db DBTX
}

func NewInvoiceRepo(db DBTX) InvoiceRepository {
	return &invoiceRepo{db: db}
}

const invoiceColumns = `id, tenant_id, invoice_number, customer_name, customer_email, description, amount, tax_rate, tax_amount, total_amount, status, issued_date, due_date, paid_date, pdf_object, created_at, updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	inv := &models.Invoice{}
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &inv.CustomerName, &inv.CustomerEmail, &inv.Description,
		&inv.Amount, &inv.TaxRate, &inv.TaxAmount, &inv.TotalAmount, &inv.Status, &inv.IssuedDate, &inv.DueDate, &inv.PaidDate,
		&inv.PDFObject, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// nextInvoiceNumber bumps the per-tenant monthly sequence.
func nextInvoiceNumber(ctx context.Context, q Querier, tenantID uuid.UUID, issuedDate time.Time) (string, error) {
	yearMonth := issuedDate.Format("2006-01")
	query := `
		WITH upsert AS (
			INSERT INTO invoice_sequences (tenant_id, year_month, last_number)
			VALUES ($1, $2, 1)
			ON CONFLICT (tenant_id, year_month)
			DO UPDATE SET
				last_number = invoice_sequences.last_number + 1,
				updated_at = NOW()
			RETURNING last_number
		)
		SELECT last_number FROM upsert
	`
	var sequenceNum int
	if err := q.QueryRow(ctx, query, tenantID, yearMonth).Scan(&sequenceNum); err != nil {
		return "", wrapErr("invoices.sequence", err)
	}

	tenantSuffix := tenantID.String()[len(tenantID.String())-8:]
	return fmt.Sprintf("INV-%s-%s-%06d", tenantSuffix, yearMonth, sequenceNum), nil
}

func (r *invoiceRepo) Create(ctx context.Context, scope access.Scope, invoice *models.Invoice) error {
	if scope.IsEmpty() {
		return common.ErrAccessDenied
	}
	invoice.TenantID = scope.TenantID()
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}

	return inTenantTx(ctx, r.db, scope, "invoices.create", func(tx pgx.Tx) error {
		if invoice.InvoiceNumber == "" {
			number, err := nextInvoiceNumber(ctx, tx, invoice.TenantID, invoice.IssuedDate)
			if err != nil {
				return err
			}
			invoice.InvoiceNumber = number
		}

		query := `
			INSERT INTO invoices (id, tenant_id, invoice_number, customer_name, customer_email, description, amount, tax_rate, tax_amount, total_amount, status, issued_date, due_date, paid_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, query, invoice.ID, invoice.TenantID, invoice.InvoiceNumber, invoice.CustomerName, invoice.CustomerEmail,
			invoice.Description, invoice.Amount, invoice.TaxRate, invoice.TaxAmount, invoice.TotalAmount, invoice.Status,
			invoice.IssuedDate, invoice.DueDate, invoice.PaidDate).Scan(&invoice.CreatedAt, &invoice.UpdatedAt)
		return wrapErr("invoices.create", err)
	})
}

func (r *invoiceRepo) GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Invoice, bool, error) {
	if scope.IsEmpty() {
		return nil, false, nil
	}
	var invoice *models.Invoice
	var found bool
	err := inTenantTx(ctx, r.db, scope, "invoices.get", func(tx pgx.Tx) error {
		query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1 AND id = $2`
		inv, err := scanInvoice(tx.QueryRow(ctx, query, scope.TenantID(), id))
		found, err = optional("invoices.get", err)
		invoice = inv
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return invoice, true, nil
}

func (r *invoiceRepo) Update(ctx context.Context, scope access.Scope, invoice *models.Invoice) error {
	if scope.IsEmpty() {
		return common.ErrNotFound
	}
	return inTenantTx(ctx, r.db, scope, "invoices.update", func(tx pgx.Tx) error {
		query := `
			UPDATE invoices
			SET customer_name = $1, customer_email = $2, description = $3, amount = $4, tax_rate = $5, tax_amount = $6,
				total_amount = $7, status = $8, issued_date = $9, due_date = $10, paid_date = $11, updated_at = NOW()
			WHERE tenant_id = $12 AND id = $13
		`
		tag, err := tx.Exec(ctx, query, invoice.CustomerName, invoice.CustomerEmail, invoice.Description, invoice.Amount,
			invoice.TaxRate, invoice.TaxAmount, invoice.TotalAmount, invoice.Status, invoice.IssuedDate, invoice.DueDate,
			invoice.PaidDate, scope.TenantID(), invoice.ID)
		if err != nil {
			return wrapErr("invoices.update", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (r *invoiceRepo) Delete(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	if scope.IsEmpty() {
		return common.ErrNotFound
	}
	return inTenantTx(ctx, r.db, scope, "invoices.delete", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM invoices WHERE tenant_id = $1 AND id = $2`, scope.TenantID(), id)
		if err != nil {
			return wrapErr("invoices.delete", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (r *invoiceRepo) List(ctx context.Context, scope access.Scope, filter *models.InvoiceFilter) ([]*models.Invoice, error) {
	if scope.IsEmpty() {
		return []*models.Invoice{}, nil
	}
	if filter == nil {
		filter = &models.InvoiceFilter{}
	}
	limit, offset, err := common.ValidatePaginationParams(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	var invoices []*models.Invoice
	err = inTenantTx(ctx, r.db, scope, "invoices.list", func(tx pgx.Tx) error {
		query := `
			SELECT ` + invoiceColumns + `
			FROM invoices
			WHERE tenant_id = $1 AND ($2::text IS NULL OR status = $2)
			ORDER BY issued_date DESC
			LIMIT $3 OFFSET $4
		`
		rows, err := tx.Query(ctx, query, scope.TenantID(), filter.Status, limit, offset)
		if err != nil {
			return wrapErr("invoices.list", err)
		}
		defer rows.Close()

		for rows.Next() {
			inv, err := scanInvoice(rows)
			if err != nil {
				return wrapErr("invoices.list", err)
			}
			invoices = append(invoices, inv)
		}
		return wrapErr("invoices.list", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepo) UpdateStatus(ctx context.Context, scope access.Scope, id uuid.UUID, status string, paidDate *time.Time) error {
	if scope.IsEmpty() {
		return common.ErrNotFound
	}
	return inTenantTx(ctx, r.db, scope, "invoices.update_status", func(tx pgx.Tx) error {
		query := `UPDATE invoices SET status = $1, paid_date = $2, updated_at = NOW() WHERE tenant_id = $3 AND id = $4`
		tag, err := tx.Exec(ctx, query, status, paidDate, scope.TenantID(), id)
		if err != nil {
			return wrapErr("invoices.update_status", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (r *invoiceRepo) SetPDFObject(ctx context.Context, scope access.Scope, id uuid.UUID, object string) error {
	if scope.IsEmpty() {
		return common.ErrNotFound
	}
	return inTenantTx(ctx, r.db, scope, "invoices.set_pdf", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE invoices SET pdf_object = $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3`, object, scope.TenantID(), id)
		if err != nil {
			return wrapErr("invoices.set_pdf", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (r *invoiceRepo) MarkOverdue(ctx context.Context, scope access.Scope, asOf time.Time) (int64, error) {
	if scope.IsEmpty() {
		return 0, nil
	}
	var affected int64
	err := inTenantTx(ctx, r.db, scope, "invoices.mark_overdue", func(tx pgx.Tx) error {
		query := `
			UPDATE invoices SET status = $1, updated_at = NOW()
			WHERE tenant_id = $2 AND status = $3 AND due_date < $4
		`
		tag, err := tx.Exec(ctx, query, models.InvoiceStatusOverdue, scope.TenantID(), models.InvoiceStatusUnpaid, asOf)
		if err != nil {
			return wrapErr("invoices.mark_overdue", err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}
