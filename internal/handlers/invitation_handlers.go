package handlers

import (
	"net/http"

	"reviewdesk/internal/common"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/services"

	"github.com/labstack/echo/v4"
)

type InvitationHandlers struct {
	invitations services.InvitationService
}

func NewInvitationHandlers(invitations services.InvitationService) *InvitationHandlers {
	return &InvitationHandlers{invitations: invitations}
}

// IssueInvitation handles POST /v1/invitations. Tenant admins invite into
// their own tenant; super admins name the tenant in the body.
func (h *InvitationHandlers) IssueInvitation(c echo.Context) error {
	var req services.IssueInvitationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateEmail(req.Email); err != nil {
		return common.SendValidationError(c, "email", err.Error())
	}
	req.Email = common.NormalizeEmail(req.Email)

	issued, err := h.invitations.Issue(c.Request().Context(), middleware.ProfileFrom(c), &req)
	if err != nil {
		return respondError(c, err, "invitation")
	}
	return c.JSON(http.StatusCreated, issued)
}

// ListInvitations handles GET /v1/invitations
func (h *InvitationHandlers) ListInvitations(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	page, err := bindPage(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	invitations, err := h.invitations.ListPending(c.Request().Context(), actor, tenantID, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err, "invitation")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"invitations": invitations,
		"limit":       page.Limit,
		"offset":      page.Offset,
	})
}

// RevokeInvitation handles DELETE /v1/invitations/:id
func (h *InvitationHandlers) RevokeInvitation(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "request")
	}
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err, "request")
	}
	if err := h.invitations.Revoke(c.Request().Context(), actor, tenantID, id); err != nil {
		return respondError(c, err, "invitation")
	}
	return c.NoContent(http.StatusNoContent)
}
