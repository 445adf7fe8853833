package handlers

import (
	"net/http"

	"reviewdesk/internal/common"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TenantHandlers serves the master panel's tenant screens and a tenant
// admin's view of their own tenant.
type TenantHandlers struct {
	tenantService services.TenantService
}

func NewTenantHandlers(tenantService services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantService: tenantService}
}

// ListTenants handles GET /v1/master/tenants
func (h *TenantHandlers) ListTenants(c echo.Context) error {
	page, err := bindPage(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	tenants, err := h.tenantService.List(c.Request().Context(), middleware.ProfileFrom(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err, "tenant")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// CreateTenant handles POST /v1/master/tenants. With admin_email set the
// tenant's first admin is invited, or bound directly when a profile exists.
func (h *TenantHandlers) CreateTenant(c echo.Context) error {
	var req services.CreateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}
	if req.AdminEmail != "" {
		if err := common.ValidateEmail(req.AdminEmail); err != nil {
			return common.SendValidationError(c, "admin_email", err.Error())
		}
	}

	result, err := h.tenantService.Create(c.Request().Context(), middleware.ProfileFrom(c), &req)
	if err != nil {
		return respondError(c, err, "tenant")
	}
	return c.JSON(http.StatusCreated, result)
}

// GetTenant handles GET /v1/master/tenants/:id
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "request")
	}
	tenant, err := h.tenantService.GetByID(c.Request().Context(), middleware.ProfileFrom(c), id)
	if err != nil {
		return respondError(c, err, "tenant")
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateTenant handles PUT /v1/master/tenants/:id
func (h *TenantHandlers) UpdateTenant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "request")
	}
	return h.update(c, id)
}

// GetOwnTenant handles GET /v1/tenant
func (h *TenantHandlers) GetOwnTenant(c echo.Context) error {
	profile := middleware.ProfileFrom(c)
	if profile.TenantID == nil {
		return common.SendNotFoundError(c, "tenant")
	}
	tenant, err := h.tenantService.GetByID(c.Request().Context(), profile, *profile.TenantID)
	if err != nil {
		return respondError(c, err, "tenant")
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateOwnTenant handles PUT /v1/tenant
func (h *TenantHandlers) UpdateOwnTenant(c echo.Context) error {
	profile := middleware.ProfileFrom(c)
	if profile.TenantID == nil {
		return common.SendNotFoundError(c, "tenant")
	}
	return h.update(c, *profile.TenantID)
}

func (h *TenantHandlers) update(c echo.Context, id uuid.UUID) error {
	var req services.UpdateTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	req.ID = id
	tenant, err := h.tenantService.Update(c.Request().Context(), middleware.ProfileFrom(c), &req)
	if err != nil {
		return respondError(c, err, "tenant")
	}
	return c.JSON(http.StatusOK, tenant)
}

type StatusRequest struct {
	Status string `json:"status"`
}

// SetTenantStatus handles PUT /v1/master/tenants/:id/status. Suspending a
// tenant locks out all of its members at the next request.
func (h *TenantHandlers) SetTenantStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "request")
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := h.tenantService.SetStatus(c.Request().Context(), middleware.ProfileFrom(c), id, req.Status); err != nil {
		return respondError(c, err, "tenant")
	}
	return c.NoContent(http.StatusNoContent)
}
