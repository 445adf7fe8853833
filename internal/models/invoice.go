package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	InvoiceStatusDraft   = "draft"
	InvoiceStatusUnpaid  = "unpaid"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusOverdue = "overdue"
)

type Invoice struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	TenantID      uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	InvoiceNumber string     `json:"invoice_number" db:"invoice_number"`
	CustomerName  string     `json:"customer_name" db:"customer_name"`
	CustomerEmail *string    `json:"customer_email" db:"customer_email"`
	Description   *string    `json:"description" db:"description"`
	Amount        float64    `json:"amount" db:"amount"`
	TaxRate       float64    `json:"tax_rate" db:"tax_rate"`
	TaxAmount     float64    `json:"tax_amount" db:"tax_amount"`
	TotalAmount   float64    `json:"total_amount" db:"total_amount"`
	Status        string     `json:"status" db:"status"`
	IssuedDate    time.Time  `json:"issued_date" db:"issued_date"`
	DueDate       time.Time  `json:"due_date" db:"due_date"`
	PaidDate      *time.Time `json:"paid_date" db:"paid_date"`
	PDFObject     *string    `json:"pdf_object" db:"pdf_object"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status *string `query:"status"`
	Limit  int     `query:"limit"`
	Offset int     `query:"offset"`
}

// ValidInvoiceStatus reports whether status is a known invoice status.
func ValidInvoiceStatus(status string) bool {
	switch status {
	case InvoiceStatusDraft, InvoiceStatusUnpaid, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}
