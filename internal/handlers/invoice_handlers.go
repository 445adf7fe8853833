package handlers

import (
	"net/http"

	"reviewdesk/internal/common"
	"reviewdesk/internal/models"
	"reviewdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// InvoiceHandlers serves a tenant's invoices. Super admins pass tenant_id.
type InvoiceHandlers struct {
	invoiceService services.InvoiceService
}

func NewInvoiceHandlers(invoiceService services.InvoiceService) *InvoiceHandlers {
	return &InvoiceHandlers{invoiceService: invoiceService}
}

// CreateInvoice handles POST /v1/invoices
func (h *InvoiceHandlers) CreateInvoice(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	var req services.InvoiceRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	invoice, err := h.invoiceService.Create(c.Request().Context(), actor, tenantID, &req)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	return c.JSON(http.StatusCreated, invoice)
}

// ListInvoices handles GET /v1/invoices
func (h *InvoiceHandlers) ListInvoices(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	page, err := bindPage(c)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	filter := &models.InvoiceFilter{Limit: page.Limit, Offset: page.Offset}
	if status := c.QueryParam("status"); status != "" {
		filter.Status = &status
	}

	invoices, err := h.invoiceService.List(c.Request().Context(), actor, tenantID, filter)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// GetInvoice handles GET /v1/invoices/:id
func (h *InvoiceHandlers) GetInvoice(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "invoice")
	}
	invoice, err := h.invoiceService.Get(c.Request().Context(), actor, tenantID, id)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	return c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice handles PUT /v1/invoices/:id
func (h *InvoiceHandlers) UpdateInvoice(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "invoice")
	}
	var req services.InvoiceRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	invoice, err := h.invoiceService.Update(c.Request().Context(), actor, tenantID, id, &req)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	return c.JSON(http.StatusOK, invoice)
}

// UpdateInvoiceStatus handles PUT /v1/invoices/:id/status
func (h *InvoiceHandlers) UpdateInvoiceStatus(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "invoice")
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	if err := h.invoiceService.UpdateStatus(c.Request().Context(), actor, tenantID, id, req.Status); err != nil {
		return respondError(c, err, "invoice")
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteInvoice handles DELETE /v1/invoices/:id
func (h *InvoiceHandlers) DeleteInvoice(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "invoice")
	}
	if err := h.invoiceService.Delete(c.Request().Context(), actor, tenantID, id); err != nil {
		return respondError(c, err, "invoice")
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateInvoicePDF handles POST /v1/invoices/:id/pdf and answers with a
// short-lived download link.
func (h *InvoiceHandlers) GenerateInvoicePDF(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "invoice")
	}
	url, err := h.invoiceService.GeneratePDF(c.Request().Context(), actor, tenantID, id)
	if err != nil {
		return respondError(c, err, "invoice")
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
