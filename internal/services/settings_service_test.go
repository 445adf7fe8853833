package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestSettingsService_Upsert(t *testing.T) {
	ctx := context.Background()
	t1 := uuid.New()
	admin := tenantProfile(models.RoleTenantAdmin, t1)

	t.Run("users cannot change settings", func(t *testing.T) {
		_, err := NewSettingsService(new(MockSettingsRepository), nil, time.Minute).
			Upsert(ctx, tenantProfile(models.RoleUser, t1), nil, &SettingsRequest{BusinessName: "Biz"})
		assert.ErrorIs(t, err, common.ErrAccessDenied)
	})

	t.Run("redirect must be absolute", func(t *testing.T) {
		relative := "/thanks"
		_, err := NewSettingsService(new(MockSettingsRepository), nil, time.Minute).
			Upsert(ctx, admin, nil, &SettingsRequest{BusinessName: "Biz", ReviewRedirectURL: &relative})
		assert.Error(t, err)
	})

	t.Run("stored in own tenant", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		redirect := "https://g.page/r/biz/review"
		repo.On("Upsert", ctx, access.TenantScope(t1), mock.MatchedBy(func(s *models.BusinessSettings) bool {
			return s.BusinessName == "Biz" && *s.ReviewRedirectURL == redirect
		})).Return(&models.BusinessSettings{TenantID: t1, BusinessName: "Biz"}, nil)

		got, err := NewSettingsService(repo, nil, time.Minute).
			Upsert(ctx, admin, nil, &SettingsRequest{BusinessName: " Biz ", ReviewRedirectURL: &redirect})
		require.NoError(t, err)
		assert.Equal(t, t1, got.TenantID)
	})
}

func TestSettingsService_UploadLogo(t *testing.T) {
	ctx := context.Background()
	t1 := uuid.New()
	admin := tenantProfile(models.RoleTenantAdmin, t1)
	object := "tenants/" + t1.String() + "/branding/logo.png"

	t.Run("png is stored under the tenant prefix", func(t *testing.T) {
		repo := new(MockSettingsRepository)
		storage := new(MockStorage)
		storage.On("Put", ctx, object, pngHeader, "image/png").Return(nil)
		repo.On("SetLogo", ctx, access.TenantScope(t1), object).Return(nil)
		storage.On("PresignedURL", ctx, object, time.Minute).Return("https://files/logo", nil)

		url, err := NewSettingsService(repo, storage, time.Minute).UploadLogo(ctx, admin, nil, pngHeader)
		require.NoError(t, err)
		assert.Equal(t, "https://files/logo", url)
	})

	t.Run("non-image is refused", func(t *testing.T) {
		storage := new(MockStorage)
		_, err := NewSettingsService(new(MockSettingsRepository), storage, time.Minute).
			UploadLogo(ctx, admin, nil, []byte("hello, world"))
		assert.Error(t, err)
		storage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("oversized is refused", func(t *testing.T) {
		big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, maxLogoBytes)...)
		_, err := NewSettingsService(new(MockSettingsRepository), new(MockStorage), time.Minute).
			UploadLogo(ctx, admin, nil, big)
		assert.Error(t, err)
	})
}

func TestSettingsService_PublicProfile(t *testing.T) {
	ctx := context.Background()
	t1 := uuid.New()
	logo := "tenants/" + t1.String() + "/branding/logo.png"
	redirect := "https://g.page/r/biz/review"

	repo := new(MockSettingsRepository)
	storage := new(MockStorage)
	repo.On("Get", ctx, access.PublicScope(t1)).Return(&models.BusinessSettings{
		TenantID: t1, BusinessName: "Biz", ReviewRedirectURL: &redirect, LogoObject: &logo,
	}, true, nil)
	storage.On("PresignedURL", ctx, logo, time.Minute).Return("https://files/logo", nil)

	profile, err := NewSettingsService(repo, storage, time.Minute).PublicProfile(ctx, t1)
	require.NoError(t, err)
	assert.Equal(t, "Biz", profile.BusinessName)
	assert.Equal(t, "https://files/logo", profile.LogoURL)

	missing := uuid.New()
	repo.On("Get", ctx, access.PublicScope(missing)).Return(nil, false, nil)
	_, err = NewSettingsService(repo, storage, time.Minute).PublicProfile(ctx, missing)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
