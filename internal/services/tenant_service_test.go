package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type TenantServiceTestSuite struct {
	suite.Suite
	mockRepo  *MockTenantRepository
	mockCache *MockCacheService
	mockMail  *MockMailer
	service   TenantService
}

func (suite *TenantServiceTestSuite) SetupTest() {
	suite.mockRepo = &MockTenantRepository{}
	suite.mockCache = &MockCacheService{}
	suite.mockMail = &MockMailer{}
	suite.service = NewTenantService(suite.mockRepo, suite.mockCache, nil, InvitationLinks{
		BaseURL: "https://app.example.com",
		Mailer:  suite.mockMail,
	}, time.Minute)

	suite.mockRepo.Test(suite.T())
	suite.mockCache.Test(suite.T())
}

func (suite *TenantServiceTestSuite) TearDownTest() {
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockCache.AssertExpectations(suite.T())
}

func TestTenantServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TenantServiceTestSuite))
}

func (suite *TenantServiceTestSuite) TestCreate_WithoutAdmin() {
	ctx := context.Background()
	domain := "biz.example.com"
	req := &CreateTenantRequest{Name: "  Biz  ", Domain: &domain, PlanType: "basic"}

	suite.mockRepo.On("Create", ctx, mock.MatchedBy(func(t *models.Tenant) bool {
		return t.Name == "Biz" && t.Status == models.TenantStatusActive && t.ID != uuid.Nil
	})).Return(nil)

	result, err := suite.service.Create(ctx, superAdmin(), req)
	suite.Require().NoError(err)
	suite.Equal("Biz", result.Tenant.Name)
	suite.Nil(result.Admin)
	suite.Nil(result.Invitation)
}

func (suite *TenantServiceTestSuite) TestCreate_InvitesNewAdmin() {
	ctx := context.Background()
	req := &CreateTenantRequest{Name: "Biz", AdminEmail: "Owner@Biz.com"}

	suite.mockRepo.On("CreateWithAdmin", ctx, mock.AnythingOfType("*models.Tenant"), mock.MatchedBy(func(inv *models.Invitation) bool {
		return inv.Email == "owner@biz.com" && inv.Role == models.RoleTenantAdmin
	})).Return(nil, nil)
	suite.mockMail.On("SendInvitation", ctx, "owner@biz.com", mock.AnythingOfType("string")).Return(nil)

	result, err := suite.service.Create(ctx, superAdmin(), req)
	suite.Require().NoError(err)
	suite.Nil(result.Admin)
	suite.Require().NotNil(result.Invitation)
	suite.Equal(result.Tenant.ID, result.Invitation.Invitation.TenantID)
	suite.Equal(HashInvitationToken(result.Invitation.Token), result.Invitation.Invitation.TokenHash)
	suite.True(result.Invitation.EmailQueued)
	suite.mockMail.AssertExpectations(suite.T())
}

func (suite *TenantServiceTestSuite) TestCreate_BindsExistingAdmin() {
	ctx := context.Background()
	req := &CreateTenantRequest{Name: "Biz", AdminEmail: "owner@biz.com"}
	bound := &models.Profile{ID: uuid.New(), Email: "owner@biz.com", Role: models.RoleTenantAdmin}

	suite.mockRepo.On("CreateWithAdmin", ctx, mock.Anything, mock.Anything).Return(bound, nil)
	suite.mockCache.On("DeleteProfile", ctx, bound.ID).Return(nil)

	result, err := suite.service.Create(ctx, superAdmin(), req)
	suite.Require().NoError(err)
	suite.Equal(bound, result.Admin)
	suite.Nil(result.Invitation)
	suite.mockMail.AssertNotCalled(suite.T(), "SendInvitation", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *TenantServiceTestSuite) TestCreate_RequiresSuperAdmin() {
	ctx := context.Background()
	admin := tenantProfile(models.RoleTenantAdmin, uuid.New())

	_, err := suite.service.Create(ctx, admin, &CreateTenantRequest{Name: "Biz"})
	suite.ErrorIs(err, common.ErrAccessDenied)

	_, err = suite.service.Create(ctx, superAdmin(), &CreateTenantRequest{Name: " "})
	suite.Error(err)
}

func (suite *TenantServiceTestSuite) TestGetByID_OtherTenantIsNotFound() {
	ctx := context.Background()
	own := uuid.New()
	other := uuid.New()
	user := tenantProfile(models.RoleUser, own)

	_, err := suite.service.GetByID(ctx, user, other)
	suite.ErrorIs(err, common.ErrNotFound)

	suite.mockRepo.On("GetByID", ctx, own).Return(&models.Tenant{ID: own, Name: "Own"}, true, nil)
	tenant, err := suite.service.GetByID(ctx, user, own)
	suite.Require().NoError(err)
	suite.Equal("Own", tenant.Name)
}

func (suite *TenantServiceTestSuite) TestUpdate_PlanTypeIsMasterOnly() {
	ctx := context.Background()
	id := uuid.New()
	admin := tenantProfile(models.RoleTenantAdmin, id)

	suite.mockRepo.On("GetByID", ctx, id).Return(&models.Tenant{ID: id, Name: "Old", PlanType: "basic"}, true, nil).Once()
	suite.mockRepo.On("Update", ctx, mock.MatchedBy(func(t *models.Tenant) bool {
		return t.Name == "New" && t.PlanType == "basic"
	})).Return(nil).Once()

	tenant, err := suite.service.Update(ctx, admin, &UpdateTenantRequest{ID: id, Name: "New", PlanType: "enterprise"})
	suite.Require().NoError(err)
	suite.Equal("basic", tenant.PlanType)

	suite.mockRepo.On("GetByID", ctx, id).Return(&models.Tenant{ID: id, Name: "New", PlanType: "basic"}, true, nil).Once()
	suite.mockRepo.On("Update", ctx, mock.MatchedBy(func(t *models.Tenant) bool {
		return t.PlanType == "enterprise"
	})).Return(nil).Once()

	tenant, err = suite.service.Update(ctx, superAdmin(), &UpdateTenantRequest{ID: id, PlanType: "enterprise"})
	suite.Require().NoError(err)
	suite.Equal("enterprise", tenant.PlanType)
}

func (suite *TenantServiceTestSuite) TestSetStatus_InvalidatesCache() {
	ctx := context.Background()
	id := uuid.New()

	suite.mockRepo.On("UpdateStatus", ctx, id, models.TenantStatusSuspended).Return(nil)
	suite.mockCache.On("DeleteTenantStatus", ctx, id).Return(nil)

	suite.NoError(suite.service.SetStatus(ctx, superAdmin(), id, models.TenantStatusSuspended))
	suite.Error(suite.service.SetStatus(ctx, superAdmin(), id, "archived"))
	suite.ErrorIs(suite.service.SetStatus(ctx, tenantProfile(models.RoleTenantAdmin, id), id, models.TenantStatusActive), common.ErrAccessDenied)
}

func (suite *TenantServiceTestSuite) TestIsSuspended() {
	ctx := context.Background()

	suite.Run("cached", func() {
		id := uuid.New()
		suite.mockCache.On("GetTenantStatus", ctx, id).Return(models.TenantStatusSuspended, nil).Once()

		suspended, err := suite.service.IsSuspended(ctx, id)
		suite.NoError(err)
		suite.True(suspended)
	})

	suite.Run("reads through", func() {
		id := uuid.New()
		suite.mockCache.On("GetTenantStatus", ctx, id).Return("", nil).Once()
		suite.mockRepo.On("GetByID", ctx, id).Return(&models.Tenant{ID: id, Status: models.TenantStatusActive}, true, nil).Once()
		suite.mockCache.On("SetTenantStatus", ctx, id, models.TenantStatusActive, time.Minute).Return(nil).Once()

		suspended, err := suite.service.IsSuspended(ctx, id)
		suite.NoError(err)
		suite.False(suspended)
	})

	suite.Run("missing tenant counts as suspended", func() {
		id := uuid.New()
		suite.mockCache.On("GetTenantStatus", ctx, id).Return("", errors.New("redis down")).Once()
		suite.mockRepo.On("GetByID", ctx, id).Return(nil, false, nil).Once()

		suspended, err := suite.service.IsSuspended(ctx, id)
		suite.NoError(err)
		suite.True(suspended)
	})

	suite.Run("transport failure is retried once", func() {
		id := uuid.New()
		suite.mockCache.On("GetTenantStatus", ctx, id).Return("", nil).Once()
		suite.mockRepo.On("GetByID", ctx, id).Return(nil, false, common.NewTransportError("tenants.get", errors.New("conn reset"))).Once()
		suite.mockRepo.On("GetByID", ctx, id).Return(&models.Tenant{ID: id, Status: models.TenantStatusActive}, true, nil).Once()
		suite.mockCache.On("SetTenantStatus", ctx, id, models.TenantStatusActive, time.Minute).Return(nil).Once()

		suspended, err := suite.service.IsSuspended(ctx, id)
		suite.NoError(err)
		suite.False(suspended)
	})

	suite.Run("second transport failure is reported", func() {
		id := uuid.New()
		suite.mockCache.On("GetTenantStatus", ctx, id).Return("", nil).Once()
		suite.mockRepo.On("GetByID", ctx, id).Return(nil, false, common.NewTransportError("tenants.get", errors.New("conn reset"))).Twice()

		_, err := suite.service.IsSuspended(ctx, id)
		suite.True(common.IsTransport(err))
	})

	suite.Run("server errors are not retried", func() {
		id := uuid.New()
		suite.mockCache.On("GetTenantStatus", ctx, id).Return("", nil).Once()
		suite.mockRepo.On("GetByID", ctx, id).Return(nil, false, errors.New("tenants.get: permission denied")).Once()

		_, err := suite.service.IsSuspended(ctx, id)
		suite.Error(err)
		suite.False(common.IsTransport(err))
	})
}

func (suite *TenantServiceTestSuite) TestList() {
	ctx := context.Background()
	tenants := []*models.Tenant{{ID: uuid.New(), Name: "A"}}
	suite.mockRepo.On("List", ctx, 10, 0).Return(tenants, nil)

	got, err := suite.service.List(ctx, superAdmin(), 0, -5)
	suite.NoError(err)
	suite.Equal(tenants, got)

	_, err = suite.service.List(ctx, tenantProfile(models.RoleTenantAdmin, uuid.New()), 10, 0)
	suite.ErrorIs(err, common.ErrAccessDenied)
}
