package handlers

import (
	"net/http"

	"reviewdesk/internal/common"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// UserHandlers serves profile administration for tenant admins (their own
// tenant) and super admins (every tenant).
type UserHandlers struct {
	profileAdmin services.ProfileAdminService
}

func NewUserHandlers(profileAdmin services.ProfileAdminService) *UserHandlers {
	return &UserHandlers{profileAdmin: profileAdmin}
}

// ListUsers handles GET /v1/users
func (h *UserHandlers) ListUsers(c echo.Context) error {
	tenantID, err := requestedTenant(c)
	if err != nil {
		return respondError(c, err, "user")
	}
	page, err := bindPage(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	filter := models.ProfileFilter{TenantID: tenantID, Limit: page.Limit, Offset: page.Offset}
	if r := c.QueryParam("role"); r != "" {
		role := models.Role(r)
		if !role.Valid() {
			return common.SendValidationError(c, "role", "unknown role")
		}
		filter.Role = &role
	}

	profiles, err := h.profileAdmin.List(c.Request().Context(), middleware.ProfileFrom(c), &filter)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users":  profiles,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetUser handles GET /v1/users/:id
func (h *UserHandlers) GetUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "request")
	}
	profile, err := h.profileAdmin.Get(c.Request().Context(), middleware.ProfileFrom(c), id)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusOK, profile)
}

// ChangeRole handles PUT /v1/users/:id/role
func (h *UserHandlers) ChangeRole(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "request")
	}
	var req services.ChangeRoleRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if !req.Role.Valid() {
		return common.SendValidationError(c, "role", "unknown role")
	}

	profile, err := h.profileAdmin.ChangeRole(c.Request().Context(), middleware.ProfileFrom(c), id, &req)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusOK, profile)
}

// SetUserStatus handles PUT /v1/users/:id/status
func (h *UserHandlers) SetUserStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "request")
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	profile, err := h.profileAdmin.SetStatus(c.Request().Context(), middleware.ProfileFrom(c), id, req.Status)
	if err != nil {
		return respondError(c, err, "user")
	}
	return c.JSON(http.StatusOK, profile)
}
