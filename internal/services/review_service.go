package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/caching"
	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxCommentLength = 2000

type ReviewService interface {
	// Submit stores a review from the public form. No session is involved;
	// the tenant comes from the route and clientKey identifies the sender
	// for rate limiting.
	Submit(ctx context.Context, tenantID uuid.UUID, req *SubmitReviewRequest, clientKey string) (*models.Review, error)
	List(ctx context.Context, actor *models.Profile, requested *uuid.UUID, filter *models.ReviewFilter) ([]*models.Review, error)
	Get(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) (*models.Review, error)
	Summary(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (*models.ReviewSummary, error)
	Subscribe(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (*Subscription, error)
}

type SubmitReviewRequest struct {
	CustomerName  string  `json:"customer_name"`
	CustomerEmail *string `json:"customer_email"`
	Rating        int     `json:"rating"`
	Comment       string  `json:"comment"`
}

// RateLimit bounds public submissions per client and tenant.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

type reviewService struct {
	reviews   repositories.ReviewRepository
	tenants   repositories.TenantRepository
	cache     caching.CacheService
	hub       *ReviewHub
	rateLimit RateLimit
}

func NewReviewService(reviews repositories.ReviewRepository, tenants repositories.TenantRepository, cache caching.CacheService, hub *ReviewHub, rateLimit RateLimit) ReviewService {
	return &reviewService{
		reviews:   reviews,
		tenants:   tenants,
		cache:     cache,
		hub:       hub,
		rateLimit: rateLimit,
	}
}

func (r *SubmitReviewRequest) validate() error {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	if r.CustomerName == "" {
		return errors.New("customer_name is required")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	if len(r.Comment) > maxCommentLength {
		return errors.New("comment is too long")
	}
	if r.CustomerEmail != nil {
		if *r.CustomerEmail == "" {
			r.CustomerEmail = nil
		} else if err := common.ValidateEmail(*r.CustomerEmail); err != nil {
			return err
		}
	}
	return nil
}

func (s *reviewService) Submit(ctx context.Context, tenantID uuid.UUID, req *SubmitReviewRequest, clientKey string) (*models.Review, error) {
	if err := req.validate(); err != nil {
		metrics.RecordReviewSubmission("invalid")
		return nil, err
	}

	if s.cache != nil && s.rateLimit.Limit > 0 {
		limited, err := s.cache.IsRateLimited(ctx, "review:"+tenantID.String()+":"+clientKey, s.rateLimit.Limit, s.rateLimit.Window)
		if err != nil {
			logger.FromContext(ctx).Warn("rate limiter unavailable", zap.Error(err))
		} else if limited {
			metrics.RecordReviewSubmission("rate_limited")
			return nil, ErrRateLimited
		}
	}

	tenant, found, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !found || !tenant.IsActive() {
		metrics.RecordReviewSubmission("unknown_tenant")
		return nil, common.ErrNotFound
	}

	review := &models.Review{
		ID:            uuid.New(),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Rating:        req.Rating,
		Comment:       strings.TrimSpace(req.Comment),
		Source:        "public_form",
	}
	if err := s.reviews.Create(ctx, access.PublicScope(tenantID), review); err != nil {
		metrics.RecordReviewSubmission("error")
		return nil, err
	}
	metrics.RecordReviewSubmission("accepted")

	if s.hub != nil {
		event := models.ReviewEvent{Type: ReviewCreatedEvent, TenantID: tenantID, Review: review}
		if err := s.hub.Publish(ctx, event); err != nil {
			logger.FromContext(ctx).Warn("failed to publish review event", zap.Error(err))
		}
	}
	return review, nil
}

func (s *reviewService) List(ctx context.Context, actor *models.Profile, requested *uuid.UUID, filter *models.ReviewFilter) ([]*models.Review, error) {
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.reviews.List(ctx, scope, filter)
}

func (s *reviewService) Get(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) (*models.Review, error) {
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}
	review, found, err := s.reviews.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrNotFound
	}
	return review, nil
}

func (s *reviewService) Summary(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (*models.ReviewSummary, error) {
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.reviews.Summary(ctx, scope)
}

func (s *reviewService) Subscribe(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (*Subscription, error) {
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, scope)
}
