package handlers

import (
	"io"
	"net/http"

	"reviewdesk/internal/common"
	"reviewdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// logoFormLimit bounds the multipart read; the service applies the real
// size limit.
const logoFormLimit = 4 << 20

type SettingsHandlers struct {
	settings services.SettingsService
}

func NewSettingsHandlers(settings services.SettingsService) *SettingsHandlers {
	return &SettingsHandlers{settings: settings}
}

// GetSettings handles GET /v1/settings
func (h *SettingsHandlers) GetSettings(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "settings")
	}
	settings, err := h.settings.Get(c.Request().Context(), actor, tenantID)
	if err != nil {
		return respondError(c, err, "settings")
	}
	return c.JSON(http.StatusOK, settings)
}

// UpsertSettings handles PUT /v1/settings
func (h *SettingsHandlers) UpsertSettings(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "settings")
	}
	var req services.SettingsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	settings, err := h.settings.Upsert(c.Request().Context(), actor, tenantID, &req)
	if err != nil {
		return respondError(c, err, "settings")
	}
	return c.JSON(http.StatusOK, settings)
}

// UploadLogo handles POST /v1/settings/logo with a multipart "logo" field.
func (h *SettingsHandlers) UploadLogo(c echo.Context) error {
	actor, tenantID, err := actorAndTenant(c)
	if err != nil {
		return respondError(c, err, "settings")
	}
	fh, err := c.FormFile("logo")
	if err != nil {
		return common.SendValidationError(c, "logo", "logo file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return common.SendClientError(c, "Could not read upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, logoFormLimit))
	if err != nil {
		return common.SendClientError(c, "Could not read upload")
	}

	url, err := h.settings.UploadLogo(c.Request().Context(), actor, tenantID, data)
	if err != nil {
		return respondError(c, err, "settings")
	}
	return c.JSON(http.StatusOK, map[string]string{"logo_url": url})
}
