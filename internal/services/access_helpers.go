package services

import (
	"context"
	"errors"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when a public client submits too often.
var ErrRateLimited = errors.New("too many requests")

// requireRole checks that actor is an active profile holding at least role.
func requireRole(actor *models.Profile, role models.Role) error {
	if actor == nil {
		return common.ErrUnauthenticated
	}
	if !actor.IsActive() || !access.HasAccess(actor.Role, role) {
		return common.ErrAccessDenied
	}
	return nil
}

// tenantScope resolves the scope actor may read for requested, after the
// role check.
func tenantScope(actor *models.Profile, requested *uuid.UUID, role models.Role) (access.Scope, error) {
	if err := requireRole(actor, role); err != nil {
		return access.EmptyScope(), err
	}
	return access.ScopeFor(actor, requested)
}

// writeScope is tenantScope for writes, where an empty scope is refused.
func writeScope(actor *models.Profile, requested *uuid.UUID, role models.Role) (access.Scope, error) {
	scope, err := tenantScope(actor, requested, role)
	if err != nil {
		return scope, err
	}
	if scope.IsEmpty() {
		return scope, common.ErrAccessDenied
	}
	return scope, nil
}

func actorID(actor *models.Profile) *uuid.UUID {
	if actor == nil {
		return nil
	}
	id := actor.ID
	return &id
}

// logAudit records an entry and only logs when that fails; the audited
// change has already been committed.
func logAudit(ctx context.Context, audit AuditLogsService, entry *models.AuditLog) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("failed to record audit entry",
			zap.String("table", entry.TableName),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

// invalidateProfile drops a cached profile; failures only shorten the cache's usefulness.
func invalidateProfile(ctx context.Context, cache cacheDeleter, id uuid.UUID) {
	if cache == nil {
		return
	}
	if err := cache.DeleteProfile(ctx, id); err != nil {
		logger.FromContext(ctx).Warn("failed to invalidate cached profile", zap.Stringer("profile_id", id), zap.Error(err))
	}
}

type cacheDeleter interface {
	DeleteProfile(ctx context.Context, id uuid.UUID) error
}
