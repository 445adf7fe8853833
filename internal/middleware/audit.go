package middleware

import (
	"context"
	"net/http"
	"time"

	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuditRecorder stores audit entries. services.AuditLogsService implements it.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

// AuditMiddleware records write requests that were refused after the caller
// was admitted by the route guard. Successful changes are audited by the
// services that make them.
type AuditMiddleware struct {
	recorder AuditRecorder
	timeout  time.Duration
}

func NewAuditMiddleware(recorder AuditRecorder) *AuditMiddleware {
	return &AuditMiddleware{recorder: recorder, timeout: 3 * time.Second}
}

// AuditDenied wraps a route group whose handlers may answer 403.
func (m *AuditMiddleware) AuditDenied(table string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if !isWrite(c.Request().Method) || statusOf(c, err) != http.StatusForbidden {
				return err
			}

			profile := ProfileFrom(c)
			entry := &models.AuditLog{
				TableName: table,
				RecordID:  c.Param("id"),
				Action:    models.ActionAccessDenied,
				NewValues: models.JSONB{
					"method": c.Request().Method,
					"path":   c.Path(),
					"ip":     c.RealIP(),
				},
			}
			if profile != nil {
				id := profile.ID
				entry.ChangedBy = &id
				entry.TenantID = profile.TenantID
				entry.NewValues["role"] = profile.Role.String()
			} else {
				entry.ChangedBy = actorFromContext(c.Request().Context())
			}

			// the request context may already be cancelled by the client
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), m.timeout)
			defer cancel()
			if recErr := m.recorder.Record(ctx, entry); recErr != nil {
				logger.FromEcho(c).Warn("failed to record denied request", zap.Error(recErr))
			}
			return err
		}
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func statusOf(c echo.Context, err error) int {
	if err != nil {
		if he, ok := err.(*echo.HTTPError); ok {
			return he.Code
		}
		return http.StatusInternalServerError
	}
	return c.Response().Status
}

// actorFromContext is used where only a context is at hand.
func actorFromContext(ctx context.Context) *uuid.UUID {
	if id, ok := common.GetUserIDFromContext(ctx); ok {
		return &id
	}
	return nil
}
