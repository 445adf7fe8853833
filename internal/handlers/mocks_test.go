package handlers

import (
	"context"
	"errors"
	"fmt"

	"reviewdesk/internal/common"
	"reviewdesk/internal/jobs/background"
	"reviewdesk/internal/models"
	"reviewdesk/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockInvitationService struct {
	mock.Mock
}

func (m *MockInvitationService) Issue(ctx context.Context, actor *models.Profile, req *services.IssueInvitationRequest) (*services.IssuedInvitation, error) {
	args := m.Called(ctx, actor, req)
	v, _ := args.Get(0).(*services.IssuedInvitation)
	return v, args.Error(1)
}

func (m *MockInvitationService) Accept(ctx context.Context, identity models.Identity, token string) (*models.InvitationResult, error) {
	args := m.Called(ctx, identity, token)
	v, _ := args.Get(0).(*models.InvitationResult)
	return v, args.Error(1)
}

func (m *MockInvitationService) Classify(ctx context.Context, token string) (models.InvitationState, *models.Invitation, error) {
	args := m.Called(ctx, token)
	inv, _ := args.Get(1).(*models.Invitation)
	return args.Get(0).(models.InvitationState), inv, args.Error(2)
}

func (m *MockInvitationService) BindOnSignup(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	args := m.Called(ctx, identity)
	v, _ := args.Get(0).(*models.Profile)
	return v, args.Error(1)
}

func (m *MockInvitationService) SetPassword(ctx context.Context, accessToken, password string) error {
	return m.Called(ctx, accessToken, password).Error(0)
}

func (m *MockInvitationService) ListPending(ctx context.Context, actor *models.Profile, requested *uuid.UUID, limit, offset int) ([]*models.Invitation, error) {
	args := m.Called(ctx, actor, requested, limit, offset)
	v, _ := args.Get(0).([]*models.Invitation)
	return v, args.Error(1)
}

func (m *MockInvitationService) Revoke(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) error {
	return m.Called(ctx, actor, requested, id).Error(0)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Submit(ctx context.Context, tenantID uuid.UUID, req *services.SubmitReviewRequest, clientKey string) (*models.Review, error) {
	args := m.Called(ctx, tenantID, req, clientKey)
	v, _ := args.Get(0).(*models.Review)
	return v, args.Error(1)
}

func (m *MockReviewService) List(ctx context.Context, actor *models.Profile, requested *uuid.UUID, filter *models.ReviewFilter) ([]*models.Review, error) {
	args := m.Called(ctx, actor, requested, filter)
	v, _ := args.Get(0).([]*models.Review)
	return v, args.Error(1)
}

func (m *MockReviewService) Get(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, actor, requested, id)
	v, _ := args.Get(0).(*models.Review)
	return v, args.Error(1)
}

func (m *MockReviewService) Summary(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (*models.ReviewSummary, error) {
	args := m.Called(ctx, actor, requested)
	v, _ := args.Get(0).(*models.ReviewSummary)
	return v, args.Error(1)
}

func (m *MockReviewService) Subscribe(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (*services.Subscription, error) {
	args := m.Called(ctx, actor, requested)
	v, _ := args.Get(0).(*services.Subscription)
	return v, args.Error(1)
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) Create(ctx context.Context, actor *models.Profile, req *services.CreateTenantRequest) (*services.CreateTenantResult, error) {
	args := m.Called(ctx, actor, req)
	v, _ := args.Get(0).(*services.CreateTenantResult)
	return v, args.Error(1)
}

func (m *MockTenantService) GetByID(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, actor, id)
	v, _ := args.Get(0).(*models.Tenant)
	return v, args.Error(1)
}

func (m *MockTenantService) Update(ctx context.Context, actor *models.Profile, req *services.UpdateTenantRequest) (*models.Tenant, error) {
	args := m.Called(ctx, actor, req)
	v, _ := args.Get(0).(*models.Tenant)
	return v, args.Error(1)
}

func (m *MockTenantService) SetStatus(ctx context.Context, actor *models.Profile, id uuid.UUID, status string) error {
	return m.Called(ctx, actor, id, status).Error(0)
}

func (m *MockTenantService) List(ctx context.Context, actor *models.Profile, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, actor, limit, offset)
	v, _ := args.Get(0).([]*models.Tenant)
	return v, args.Error(1)
}

func (m *MockTenantService) IsSuspended(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Bool(0), args.Error(1)
}

// stubTokens accepts "<email>" bearer tokens for the listed identities.
type stubTokens map[string]models.Identity

func (s stubTokens) Identity(token string) (models.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return models.Identity{}, errors.New("token signature is invalid")
}

// stubResolver resolves identities from a fixed table.
type stubResolver struct {
	profiles map[uuid.UUID]*models.Profile
	calls    int
}

func (s *stubResolver) Resolve(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	s.calls++
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return nil, common.ErrProfileNotFound
}

func (s *stubResolver) ResolveOrCreate(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	return s.Resolve(ctx, identity.ID)
}

func (s *stubResolver) Invalidate(context.Context, uuid.UUID) {}

type stubJobs struct {
	ran []string
}

func (s *stubJobs) Jobs() []background.JobStatus {
	return []background.JobStatus{{Name: "invitation-purge"}, {Name: "overdue-invoices"}}
}

func (s *stubJobs) RunNow(name string) error {
	if name != "invitation-purge" && name != "overdue-invoices" {
		return fmt.Errorf("%w %q", background.ErrUnknownJob, name)
	}
	s.ran = append(s.ran, name)
	return nil
}
