package handlers

import (
	"errors"
	"net/http"
	"strings"

	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// fieldError is a rejected request parameter; respondError renders it as
// a validation error.
type fieldError struct {
	Field   string
	Message string
}

func (e *fieldError) Error() string {
	return e.Field + ": " + e.Message
}

func invalidField(field string, err error) error {
	return &fieldError{Field: field, Message: err.Error()}
}

// requestedTenant reads the optional tenant_id query parameter super admins
// use to pick the tenant they act on.
func requestedTenant(c echo.Context) (*uuid.UUID, error) {
	id, err := common.ValidateOptionalUUID(c.QueryParam("tenant_id"), "tenant_id")
	if err != nil {
		return nil, invalidField("tenant_id", err)
	}
	return id, nil
}

// actorAndTenant is the common prologue of scoped handlers.
func actorAndTenant(c echo.Context) (*models.Profile, *uuid.UUID, error) {
	tenantID, err := requestedTenant(c)
	if err != nil {
		return nil, nil, err
	}
	return middleware.ProfileFrom(c), tenantID, nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := common.ValidateUUID(c.Param(name), name)
	if err != nil {
		return uuid.Nil, invalidField(name, err)
	}
	return id, nil
}

// respondError maps service errors onto the JSON error envelope.
func respondError(c echo.Context, err error, resource string) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return common.SendValidationError(c, fe.Field, fe.Message)
	}
	if ie, ok := common.AsInvitationError(err); ok {
		return common.SendInvitationError(c, ie)
	}
	switch {
	case common.IsTransport(err):
		logger.FromEcho(c).Error("backend unavailable", zap.Error(err))
		return common.SendTransportError(c)
	case errors.Is(err, common.ErrUnauthenticated):
		return common.SendUnauthorizedError(c)
	case errors.Is(err, common.ErrAccessDenied):
		return common.SendForbiddenError(c, "You do not have access to this "+resource)
	case errors.Is(err, common.ErrTenantRequired):
		return common.SendValidationError(c, "tenant_id", err.Error())
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrProfileNotFound):
		return common.SendNotFoundError(c, resource)
	case errors.Is(err, common.ErrConflict):
		return c.JSON(http.StatusConflict, common.CreateErrorResponse("CONFLICT", resource+" already exists", nil))
	case errors.Is(err, services.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, common.CreateErrorResponse("RATE_LIMITED", "Too many submissions, try again later", nil))
	}
	// remaining service errors are input validation failures
	return common.SendClientError(c, err.Error())
}

// bearerToken returns the raw access token the JWT middleware accepted.
func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

type pageQuery struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func bindPage(c echo.Context) (pageQuery, error) {
	var q pageQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return q, &fieldError{Field: "limit", Message: "limit and offset must be integers"}
	}
	limit, offset, err := common.ValidatePaginationParams(q.Limit, q.Offset)
	if err != nil {
		return q, invalidField("offset", err)
	}
	q.Limit, q.Offset = limit, offset
	return q, nil
}
