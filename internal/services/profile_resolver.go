package services

import (
	"context"
	"errors"
	"time"

	"reviewdesk/internal/caching"
	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileResolver maps an authenticated identity to its profile.
type ProfileResolver interface {
	// Resolve returns common.ErrProfileNotFound when the identity has no
	// profile, and a *common.TransportError when the store is unreachable.
	Resolve(ctx context.Context, identityID uuid.UUID) (*models.Profile, error)

	// ResolveOrCreate is Resolve followed, on a miss, by binding the
	// identity to a pending invitation or creating the default profile.
	ResolveOrCreate(ctx context.Context, identity models.Identity) (*models.Profile, error)

	Invalidate(ctx context.Context, identityID uuid.UUID)
}

// SignupBinder creates the first profile of a fresh identity.
type SignupBinder interface {
	BindOnSignup(ctx context.Context, identity models.Identity) (*models.Profile, error)
}

type profileResolver struct {
	profiles repositories.ProfileRepository
	binder   SignupBinder
	cache    caching.CacheService
	cacheTTL time.Duration
}

// NewProfileResolver builds a resolver. cache may be nil.
func NewProfileResolver(profiles repositories.ProfileRepository, binder SignupBinder, cache caching.CacheService, cacheTTL time.Duration) ProfileResolver {
	return &profileResolver{
		profiles: profiles,
		binder:   binder,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (r *profileResolver) Resolve(ctx context.Context, identityID uuid.UUID) (*models.Profile, error) {
	if identityID == uuid.Nil {
		return nil, common.ErrUnauthenticated
	}
	log := logger.FromContext(ctx)

	if r.cache != nil {
		cached, err := r.cache.GetProfile(ctx, identityID)
		if err != nil {
			log.Debug("profile cache read failed", zap.Error(err))
		} else if cached != nil {
			metrics.RecordProfileLookup("cache_hit")
			return cached, nil
		}
	}

	profile, found, err := r.profiles.GetByID(ctx, identityID)
	if err != nil && common.IsTransport(err) {
		// one retry; a second failure is reported as is
		log.Warn("profile lookup failed, retrying", zap.Stringer("identity_id", identityID), zap.Error(err))
		profile, found, err = r.profiles.GetByID(ctx, identityID)
	}
	if err != nil {
		metrics.RecordProfileLookup("error")
		return nil, err
	}
	if !found {
		metrics.RecordProfileLookup("not_found")
		return nil, common.ErrProfileNotFound
	}
	metrics.RecordProfileLookup("found")

	if r.cache != nil && r.cacheTTL > 0 {
		if err := r.cache.SetProfile(ctx, profile, r.cacheTTL); err != nil {
			log.Debug("profile cache write failed", zap.Error(err))
		}
	}
	return profile, nil
}

func (r *profileResolver) ResolveOrCreate(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	profile, err := r.Resolve(ctx, identity.ID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, common.ErrProfileNotFound) {
		return nil, err
	}

	profile, err = r.binder.BindOnSignup(ctx, identity)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("profile created on first sign-in",
		zap.Stringer("identity_id", identity.ID),
		zap.String("role", profile.Role.String()))
	return profile, nil
}

func (r *profileResolver) Invalidate(ctx context.Context, identityID uuid.UUID) {
	if r.cache == nil {
		return
	}
	invalidateProfile(ctx, r.cache, identityID)
}
