package services

import (
	"context"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, bool, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Bool(1), args.Error(2)
}

func (m *MockProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, bool, error) {
	args := m.Called(ctx, email)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Bool(1), args.Error(2)
}

func (m *MockProfileRepository) CreateDefault(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	args := m.Called(ctx, profile)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *MockProfileRepository) List(ctx context.Context, filter *models.ProfileFilter) ([]*models.Profile, error) {
	args := m.Called(ctx, filter)
	p, _ := args.Get(0).([]*models.Profile)
	return p, args.Error(1)
}

func (m *MockProfileRepository) ListByTenant(ctx context.Context, scope access.Scope, limit, offset int) ([]*models.Profile, error) {
	args := m.Called(ctx, scope, limit, offset)
	p, _ := args.Get(0).([]*models.Profile)
	return p, args.Error(1)
}

func (m *MockProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role, tenantID *uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, id, role, tenantID)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *MockProfileRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Profile, error) {
	args := m.Called(ctx, id, status)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return m.Called(ctx, tenant).Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, bool, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*models.Tenant)
	return t, args.Bool(1), args.Error(2)
}

func (m *MockTenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	return m.Called(ctx, tenant).Error(0)
}

func (m *MockTenantRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockTenantRepository) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	t, _ := args.Get(0).([]*models.Tenant)
	return t, args.Error(1)
}

func (m *MockTenantRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

func (m *MockTenantRepository) CreateWithAdmin(ctx context.Context, tenant *models.Tenant, invitation *models.Invitation) (*models.Profile, error) {
	args := m.Called(ctx, tenant, invitation)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Create(ctx context.Context, scope access.Scope, review *models.Review) error {
	return m.Called(ctx, scope, review).Error(0)
}

func (m *MockReviewRepository) GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Review, bool, error) {
	args := m.Called(ctx, scope, id)
	r, _ := args.Get(0).(*models.Review)
	return r, args.Bool(1), args.Error(2)
}

func (m *MockReviewRepository) List(ctx context.Context, scope access.Scope, filter *models.ReviewFilter) ([]*models.Review, error) {
	args := m.Called(ctx, scope, filter)
	r, _ := args.Get(0).([]*models.Review)
	return r, args.Error(1)
}

func (m *MockReviewRepository) Summary(ctx context.Context, scope access.Scope) (*models.ReviewSummary, error) {
	args := m.Called(ctx, scope)
	s, _ := args.Get(0).(*models.ReviewSummary)
	return s, args.Error(1)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, scope access.Scope, invoice *models.Invoice) error {
	return m.Called(ctx, scope, invoice).Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, scope access.Scope, id uuid.UUID) (*models.Invoice, bool, error) {
	args := m.Called(ctx, scope, id)
	inv, _ := args.Get(0).(*models.Invoice)
	return inv, args.Bool(1), args.Error(2)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, scope access.Scope, invoice *models.Invoice) error {
	return m.Called(ctx, scope, invoice).Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	return m.Called(ctx, scope, id).Error(0)
}

func (m *MockInvoiceRepository) List(ctx context.Context, scope access.Scope, filter *models.InvoiceFilter) ([]*models.Invoice, error) {
	args := m.Called(ctx, scope, filter)
	inv, _ := args.Get(0).([]*models.Invoice)
	return inv, args.Error(1)
}

func (m *MockInvoiceRepository) UpdateStatus(ctx context.Context, scope access.Scope, id uuid.UUID, status string, paidDate *time.Time) error {
	return m.Called(ctx, scope, id, status, paidDate).Error(0)
}

func (m *MockInvoiceRepository) SetPDFObject(ctx context.Context, scope access.Scope, id uuid.UUID, object string) error {
	return m.Called(ctx, scope, id, object).Error(0)
}

func (m *MockInvoiceRepository) MarkOverdue(ctx context.Context, scope access.Scope, asOf time.Time) (int64, error) {
	args := m.Called(ctx, scope, asOf)
	return args.Get(0).(int64), args.Error(1)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context, scope access.Scope) (*models.BusinessSettings, bool, error) {
	args := m.Called(ctx, scope)
	s, _ := args.Get(0).(*models.BusinessSettings)
	return s, args.Bool(1), args.Error(2)
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, scope access.Scope, settings *models.BusinessSettings) (*models.BusinessSettings, error) {
	args := m.Called(ctx, scope, settings)
	s, _ := args.Get(0).(*models.BusinessSettings)
	return s, args.Error(1)
}

func (m *MockSettingsRepository) SetLogo(ctx context.Context, scope access.Scope, object string) error {
	return m.Called(ctx, scope, object).Error(0)
}

type MockAuditLogsRepository struct {
	mock.Mock
}

func (m *MockAuditLogsRepository) Create(ctx context.Context, auditLog *models.AuditLog) error {
	return m.Called(ctx, auditLog).Error(0)
}

func (m *MockAuditLogsRepository) List(ctx context.Context, scope access.Scope, filters *models.AuditLogFilters) ([]*models.AuditLog, error) {
	args := m.Called(ctx, scope, filters)
	l, _ := args.Get(0).([]*models.AuditLog)
	return l, args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *MockCacheService) SetProfile(ctx context.Context, profile *models.Profile, ttl time.Duration) error {
	return m.Called(ctx, profile, ttl).Error(0)
}

func (m *MockCacheService) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCacheService) GetTenantStatus(ctx context.Context, tenantID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) SetTenantStatus(ctx context.Context, tenantID uuid.UUID, status string, ttl time.Duration) error {
	return m.Called(ctx, tenantID, status, ttl).Error(0)
}

func (m *MockCacheService) DeleteTenantStatus(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockAuthClient struct {
	mock.Mock
}

func (m *MockAuthClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

func (m *MockAuthClient) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	args := m.Called(ctx, refreshToken)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

func (m *MockAuthClient) SendMagicLink(ctx context.Context, email, redirectTo string, createUser bool) error {
	return m.Called(ctx, email, redirectTo, createUser).Error(0)
}

func (m *MockAuthClient) Verify(ctx context.Context, tokenHash, verifyType string) (*models.Session, error) {
	args := m.Called(ctx, tokenHash, verifyType)
	s, _ := args.Get(0).(*models.Session)
	return s, args.Error(1)
}

func (m *MockAuthClient) GetUser(ctx context.Context, accessToken string) (*models.Identity, error) {
	args := m.Called(ctx, accessToken)
	i, _ := args.Get(0).(*models.Identity)
	return i, args.Error(1)
}

func (m *MockAuthClient) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

func (m *MockAuthClient) UpdatePassword(ctx context.Context, accessToken, password string) error {
	return m.Called(ctx, accessToken, password).Error(0)
}

func (m *MockAuthClient) InviteUserByEmail(ctx context.Context, email, redirectTo string, data map[string]any) error {
	return m.Called(ctx, email, redirectTo, data).Error(0)
}

func (m *MockAuthClient) BanUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	return m.Called(ctx, objectName, data, contentType).Error(0)
}

func (m *MockStorage) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, objectName string) error {
	return m.Called(ctx, objectName).Error(0)
}

func (m *MockStorage) EnsureBucket(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendInvitation(ctx context.Context, email, acceptURL string) error {
	return m.Called(ctx, email, acceptURL).Error(0)
}

type MockSignupBinder struct {
	mock.Mock
}

func (m *MockSignupBinder) BindOnSignup(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	args := m.Called(ctx, identity)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func tenantProfile(role models.Role, tenantID uuid.UUID) *models.Profile {
	return &models.Profile{
		ID:       uuid.New(),
		Email:    string(role) + "@example.com",
		Role:     role,
		TenantID: &tenantID,
		Status:   models.ProfileStatusActive,
	}
}

func superAdmin() *models.Profile {
	return &models.Profile{
		ID:     uuid.New(),
		Email:  "root@example.com",
		Role:   models.RoleSuperAdmin,
		Status: models.ProfileStatusActive,
	}
}
