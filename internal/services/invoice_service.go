package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

const maxInvoiceAmount = 10000000.00

type InvoiceService interface {
	Create(ctx context.Context, actor *models.Profile, requested *uuid.UUID, req *InvoiceRequest) (*models.Invoice, error)
	Get(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, actor *models.Profile, requested *uuid.UUID, filter *models.InvoiceFilter) ([]*models.Invoice, error)
	Update(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID, req *InvoiceRequest) (*models.Invoice, error)
	Delete(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) error
	UpdateStatus(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID, status string) error
	// GeneratePDF renders the invoice, stores it and returns a short-lived download URL.
	GeneratePDF(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) (string, error)
}

type InvoiceRequest struct {
	CustomerName  string    `json:"customer_name"`
	CustomerEmail *string   `json:"customer_email"`
	Description   *string   `json:"description"`
	Amount        float64   `json:"amount"`
	TaxRate       float64   `json:"tax_rate"`
	Status        string    `json:"status"`
	IssuedDate    time.Time `json:"issued_date"`
	DueDate       time.Time `json:"due_date"`
}

type invoiceService struct {
	invoices   repositories.InvoiceRepository
	settings   repositories.SettingsRepository
	storage    ObjectStorage
	presignTTL time.Duration
	now        func() time.Time
}

func NewInvoiceService(invoices repositories.InvoiceRepository, settings repositories.SettingsRepository, storage ObjectStorage, presignTTL time.Duration) InvoiceService {
	return &invoiceService{
		invoices:   invoices,
		settings:   settings,
		storage:    storage,
		presignTTL: presignTTL,
		now:        time.Now,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// apply validates req and copies it onto invoice with server-side totals.
func (req *InvoiceRequest) apply(invoice *models.Invoice, now time.Time) error {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		return errors.New("customer_name is required")
	}
	if req.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if req.Amount > maxInvoiceAmount {
		return errors.New("amount exceeds the allowed maximum")
	}
	if req.TaxRate < 0 || req.TaxRate > 100 {
		return errors.New("tax_rate must be between 0 and 100")
	}
	if req.CustomerEmail != nil && *req.CustomerEmail != "" {
		if err := common.ValidateEmail(*req.CustomerEmail); err != nil {
			return err
		}
	}
	if req.IssuedDate.IsZero() {
		req.IssuedDate = now
	}
	if req.DueDate.IsZero() {
		req.DueDate = req.IssuedDate.AddDate(0, 0, 30)
	}
	if req.DueDate.Before(req.IssuedDate) {
		return errors.New("due_date cannot be before issued_date")
	}

	invoice.CustomerName = req.CustomerName
	invoice.CustomerEmail = req.CustomerEmail
	invoice.Description = req.Description
	invoice.Amount = roundCents(req.Amount)
	invoice.TaxRate = req.TaxRate
	invoice.TaxAmount = roundCents(req.Amount * req.TaxRate / 100)
	invoice.TotalAmount = roundCents(invoice.Amount + invoice.TaxAmount)
	invoice.IssuedDate = req.IssuedDate
	invoice.DueDate = req.DueDate
	return nil
}

func (s *invoiceService) Create(ctx context.Context, actor *models.Profile, requested *uuid.UUID, req *InvoiceRequest) (*models.Invoice, error) {
	scope, err := writeScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{ID: uuid.New(), Status: models.InvoiceStatusDraft}
	if req.Status != "" {
		if req.Status != models.InvoiceStatusDraft && req.Status != models.InvoiceStatusUnpaid {
			return nil, fmt.Errorf("new invoices must be %s or %s", models.InvoiceStatusDraft, models.InvoiceStatusUnpaid)
		}
		invoice.Status = req.Status
	}
	if err := req.apply(invoice, s.now()); err != nil {
		return nil, err
	}

	if err := s.invoices.Create(ctx, scope, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *invoiceService) get(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Invoice, error) {
	invoice, found, err := s.invoices.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrNotFound
	}
	return invoice, nil
}

func (s *invoiceService) Get(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) (*models.Invoice, error) {
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, scope, id)
}

func (s *invoiceService) List(ctx context.Context, actor *models.Profile, requested *uuid.UUID, filter *models.InvoiceFilter) ([]*models.Invoice, error) {
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}
	if filter != nil && filter.Status != nil && !models.ValidInvoiceStatus(*filter.Status) {
		return nil, fmt.Errorf("invalid status: %s", *filter.Status)
	}
	return s.invoices.List(ctx, scope, filter)
}

func (s *invoiceService) Update(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID, req *InvoiceRequest) (*models.Invoice, error) {
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}
	invoice, err := s.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return nil, errors.New("paid invoices cannot be edited")
	}
	if err := req.apply(invoice, s.now()); err != nil {
		return nil, err
	}
	if err := s.invoices.Update(ctx, scope, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *invoiceService) Delete(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) error {
	scope, err := tenantScope(actor, requested, models.RoleTenantAdmin)
	if err != nil {
		return err
	}
	invoice, err := s.get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.invoices.Delete(ctx, scope, id); err != nil {
		return err
	}
	if invoice.PDFObject != nil && s.storage != nil {
		_ = s.storage.Delete(ctx, *invoice.PDFObject)
	}
	return nil
}

// isValidStatusTransition validates invoice status transitions
func isValidStatusTransition(currentStatus, newStatus string) bool {
	validTransitions := map[string][]string{
		models.InvoiceStatusDraft:   {models.InvoiceStatusUnpaid},
		models.InvoiceStatusUnpaid:  {models.InvoiceStatusPaid, models.InvoiceStatusOverdue},
		models.InvoiceStatusOverdue: {models.InvoiceStatusPaid},
		models.InvoiceStatusPaid:    {},
	}
	for _, status := range validTransitions[currentStatus] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func (s *invoiceService) UpdateStatus(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID, status string) error {
	if !models.ValidInvoiceStatus(status) {
		return fmt.Errorf("invalid status: %s", status)
	}
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return err
	}
	invoice, err := s.get(ctx, scope, id)
	if err != nil {
		return err
	}
	if !isValidStatusTransition(invoice.Status, status) {
		return fmt.Errorf("invalid status transition from %s to %s", invoice.Status, status)
	}

	var paidDate *time.Time
	if status == models.InvoiceStatusPaid {
		now := s.now()
		paidDate = &now
	}
	return s.invoices.UpdateStatus(ctx, scope, id, status, paidDate)
}

func (s *invoiceService) GeneratePDF(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) (string, error) {
	if s.storage == nil {
		return "", errors.New("object storage is not configured")
	}
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return "", err
	}
	invoice, err := s.get(ctx, scope, id)
	if err != nil {
		return "", err
	}
	settings, _, err := s.settings.Get(ctx, scope)
	if err != nil {
		return "", err
	}

	data, err := RenderInvoicePDF(invoice, settings)
	if err != nil {
		return "", err
	}
	object := tenantObject(invoice.TenantID, "invoices", invoice.ID.String()+".pdf")
	if err := s.storage.Put(ctx, object, data, "application/pdf"); err != nil {
		return "", fmt.Errorf("failed to store invoice pdf: %w", err)
	}
	if err := s.invoices.SetPDFObject(ctx, scope, id, object); err != nil {
		return "", err
	}
	return s.storage.PresignedURL(ctx, object, s.presignTTL)
}

// RenderInvoicePDF lays out a single-page A4 invoice. settings may be nil.
func RenderInvoicePDF(invoice *models.Invoice, settings *models.BusinessSettings) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	marginX, marginY := 15.0, 20.0
	pdf.SetMargins(marginX, marginY, marginX)
	pdf.SetAutoPageBreak(true, marginY)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	businessName := "INVOICE"
	if settings != nil && settings.BusinessName != "" {
		businessName = settings.BusinessName
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.SetXY(marginX, marginY)
	pdf.Cell(0, 10, tr(businessName))
	pdf.Ln(12)

	if settings != nil {
		pdf.SetFont("Arial", "", 9)
		for _, line := range []*string{settings.Address, settings.ContactEmail, settings.Phone} {
			if line != nil && *line != "" {
				pdf.Cell(0, 5, tr(*line))
				pdf.Ln(5)
			}
		}
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Invoice Number: %s", invoice.InvoiceNumber))
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Issued: %s", invoice.IssuedDate.Format("02-Jan-2006")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Due: %s", invoice.DueDate.Format("02-Jan-2006")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", strings.ToUpper(invoice.Status)))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, "BILL TO:")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(invoice.CustomerName))
	pdf.Ln(6)
	if invoice.CustomerEmail != nil {
		pdf.Cell(0, 6, *invoice.CustomerEmail)
		pdf.Ln(6)
	}
	pdf.Ln(6)

	colWidths := []float64{130, 50}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, header := range []string{"Description", "Amount"} {
		pdf.CellFormat(colWidths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(8)

	description := "Services"
	if invoice.Description != nil && *invoice.Description != "" {
		description = *invoice.Description
	}
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(colWidths[0], 8, tr(description), "1", 0, "L", false, 0, "")
	pdf.CellFormat(colWidths[1], 8, fmt.Sprintf("%.2f", invoice.Amount), "1", 0, "R", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(130, 6, fmt.Sprintf("Tax (%.2f%%):", invoice.TaxRate), "", 0, "R", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", invoice.TaxAmount), "", 0, "R", false, 0, "")
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(130, 8, "Total:", "", 0, "R", false, 0, "")
	pdf.CellFormat(50, 8, fmt.Sprintf("%.2f", invoice.TotalAmount), "", 0, "R", false, 0, "")
	pdf.Ln(8)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}
