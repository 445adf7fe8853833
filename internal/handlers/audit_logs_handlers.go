package handlers

import (
	"net/http"
	"time"

	"reviewdesk/internal/models"
	"reviewdesk/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
}

func NewAuditLogsHandlers(auditLogsService services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{auditLogsService: auditLogsService}
}

// ListAuditLogs handles GET /v1/audit-logs
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "audit log")
	}
	filters, err := parseAuditFilters(c)
	if err != nil {
		return respondError(c, err, "audit log")
	}

	logs, err := h.auditLogsService.List(c.Request().Context(), actor, tenantID, filters)
	if err != nil {
		return respondError(c, err, "audit log")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"audit_logs": logs,
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	})
}

func parseAuditFilters(c echo.Context) (*models.AuditLogFilters, error) {
	page, err := bindPage(c)
	if err != nil {
		return nil, err
	}
	filters := &models.AuditLogFilters{Limit: page.Limit, Offset: page.Offset}

	if v := c.QueryParam("table_name"); v != "" {
		filters.TableName = &v
	}
	if v := c.QueryParam("action"); v != "" {
		filters.Action = &v
	}
	if v := c.QueryParam("changed_by"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, &fieldError{Field: "changed_by", Message: "invalid UUID format"}
		}
		filters.ChangedBy = &id
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start_date", &filters.StartDate}, {"end_date", &filters.EndDate}} {
		if v := c.QueryParam(p.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, &fieldError{Field: p.name, Message: "must be an RFC 3339 timestamp"}
			}
			*p.dst = &t
		}
	}
	if err := services.ValidateAuditFilters(filters); err != nil {
		return nil, &fieldError{Field: "filters", Message: err.Error()}
	}
	return filters, nil
}
