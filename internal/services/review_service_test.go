package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/caching"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func activeTenant(id uuid.UUID) *models.Tenant {
	return &models.Tenant{ID: id, Name: "Biz", Status: models.TenantStatusActive}
}

func TestReviewService_SubmitValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewReviewService(new(MockReviewRepository), new(MockTenantRepository), nil, nil, RateLimit{})
	blank := ""
	bad := "not-an-email"

	tests := []struct {
		name string
		req  SubmitReviewRequest
	}{
		{"missing name", SubmitReviewRequest{Rating: 5}},
		{"rating too low", SubmitReviewRequest{CustomerName: "A", Rating: 0}},
		{"rating too high", SubmitReviewRequest{CustomerName: "A", Rating: 6}},
		{"comment too long", SubmitReviewRequest{CustomerName: "A", Rating: 3, Comment: strings.Repeat("x", maxCommentLength+1)}},
		{"bad email", SubmitReviewRequest{CustomerName: "A", Rating: 3, CustomerEmail: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, uuid.New(), &tt.req, "1.2.3.4")
			assert.Error(t, err)
		})
	}

	t.Run("blank email is dropped", func(t *testing.T) {
		req := SubmitReviewRequest{CustomerName: "A", Rating: 3, CustomerEmail: &blank}
		require.NoError(t, req.validate())
		assert.Nil(t, req.CustomerEmail)
	})
}

func TestReviewService_SubmitUsesRouteTenant(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	reviews := new(MockReviewRepository)
	tenants := new(MockTenantRepository)
	tenants.On("GetByID", ctx, tenantID).Return(activeTenant(tenantID), true, nil)
	reviews.On("Create", ctx, access.PublicScope(tenantID), mock.MatchedBy(func(r *models.Review) bool {
		return r.CustomerName == "Dana" && r.Rating == 4 && r.Source == "public_form"
	})).Return(nil)

	svc := NewReviewService(reviews, tenants, nil, nil, RateLimit{})
	review, err := svc.Submit(ctx, tenantID, &SubmitReviewRequest{CustomerName: " Dana ", Rating: 4, Comment: " great "}, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "great", review.Comment)
	reviews.AssertExpectations(t)
}

func TestReviewService_SubmitRejectsInactiveTenant(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	tenants := new(MockTenantRepository)
	tenants.On("GetByID", ctx, tenantID).Return(&models.Tenant{ID: tenantID, Status: models.TenantStatusSuspended}, true, nil)
	reviews := new(MockReviewRepository)

	_, err := NewReviewService(reviews, tenants, nil, nil, RateLimit{}).
		Submit(ctx, tenantID, &SubmitReviewRequest{CustomerName: "A", Rating: 5}, "k")
	assert.ErrorIs(t, err, common.ErrNotFound)
	reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewService_RateLimit(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	limit := RateLimit{Limit: 5, Window: time.Hour}
	key := "review:" + tenantID.String() + ":9.9.9.9"

	t.Run("limited", func(t *testing.T) {
		cache := new(MockCacheService)
		cache.On("IsRateLimited", ctx, key, 5, time.Hour).Return(true, nil)
		tenants := new(MockTenantRepository)

		_, err := NewReviewService(new(MockReviewRepository), tenants, cache, nil, limit).
			Submit(ctx, tenantID, &SubmitReviewRequest{CustomerName: "A", Rating: 5}, "9.9.9.9")
		assert.ErrorIs(t, err, ErrRateLimited)
		tenants.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("limiter outage lets the review through", func(t *testing.T) {
		cache := new(MockCacheService)
		cache.On("IsRateLimited", ctx, key, 5, time.Hour).Return(false, errors.New("redis down"))
		tenants := new(MockTenantRepository)
		tenants.On("GetByID", ctx, tenantID).Return(activeTenant(tenantID), true, nil)
		reviews := new(MockReviewRepository)
		reviews.On("Create", ctx, access.PublicScope(tenantID), mock.Anything).Return(nil)

		_, err := NewReviewService(reviews, tenants, cache, nil, limit).
			Submit(ctx, tenantID, &SubmitReviewRequest{CustomerName: "A", Rating: 5}, "9.9.9.9")
		assert.NoError(t, err)
	})
}

func TestReviewService_ReadsAreTenantScoped(t *testing.T) {
	ctx := context.Background()
	t1, t2 := uuid.New(), uuid.New()

	t.Run("tenant user asking for another tenant reads nothing", func(t *testing.T) {
		reviews := new(MockReviewRepository)
		reviews.On("List", ctx, access.EmptyScope(), mock.Anything).Return([]*models.Review{}, nil)

		got, err := NewReviewService(reviews, nil, nil, nil, RateLimit{}).List(ctx, tenantProfile(models.RoleUser, t1), &t2, &models.ReviewFilter{})
		require.NoError(t, err)
		assert.Empty(t, got)
		reviews.AssertExpectations(t)
	})

	t.Run("super admin reads the requested tenant", func(t *testing.T) {
		reviews := new(MockReviewRepository)
		want := []*models.Review{{ID: uuid.New(), TenantID: t2, Rating: 5}}
		reviews.On("List", ctx, access.TenantScope(t2), mock.Anything).Return(want, nil)

		got, err := NewReviewService(reviews, nil, nil, nil, RateLimit{}).List(ctx, superAdmin(), &t2, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("super admin without a tenant is told to pick one", func(t *testing.T) {
		_, err := NewReviewService(new(MockReviewRepository), nil, nil, nil, RateLimit{}).Summary(ctx, superAdmin(), nil)
		assert.ErrorIs(t, err, common.ErrTenantRequired)
	})

	t.Run("get outside scope is not found", func(t *testing.T) {
		reviews := new(MockReviewRepository)
		id := uuid.New()
		reviews.On("GetByID", ctx, access.EmptyScope(), id).Return(nil, false, nil)

		_, err := NewReviewService(reviews, nil, nil, nil, RateLimit{}).Get(ctx, tenantProfile(models.RoleTenantAdmin, t1), &t2, id)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestReviewService_RealtimeFeedIsTenantScoped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t1, t2 := uuid.New(), uuid.New()

	hub := NewReviewHub(caching.NewMemoryBroker())
	tenants := new(MockTenantRepository)
	reviews := new(MockReviewRepository)
	for _, id := range []uuid.UUID{t1, t2} {
		tenants.On("GetByID", mock.Anything, id).Return(activeTenant(id), true, nil)
		reviews.On("Create", mock.Anything, access.PublicScope(id), mock.Anything).Return(nil)
	}
	svc := NewReviewService(reviews, tenants, nil, hub, RateLimit{})

	sub, err := svc.Subscribe(ctx, tenantProfile(models.RoleUser, t1), nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = svc.Submit(ctx, t2, &SubmitReviewRequest{CustomerName: "Other", Rating: 1}, "a")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, t1, &SubmitReviewRequest{CustomerName: "Mine", Rating: 5}, "b")
	require.NoError(t, err)

	select {
	case event := <-sub.Events:
		assert.Equal(t, ReviewCreatedEvent, event.Type)
		assert.Equal(t, t1, event.TenantID)
		assert.Equal(t, "Mine", event.Review.CustomerName)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	select {
	case _, ok := <-sub.Events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed after unsubscribe")
	}
}

func TestReviewHub_EmptyScopeNeverDelivers(t *testing.T) {
	hub := NewReviewHub(caching.NewMemoryBroker())
	sub, err := hub.Subscribe(context.Background(), access.EmptyScope())
	require.NoError(t, err)

	_, ok := <-sub.Events
	assert.False(t, ok)
	sub.Unsubscribe()
}
