package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"

	"github.com/google/uuid"
)

const maxLogoBytes = 2 << 20

type SettingsService interface {
	Get(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (*models.BusinessSettings, error)
	Upsert(ctx context.Context, actor *models.Profile, requested *uuid.UUID, req *SettingsRequest) (*models.BusinessSettings, error)
	// UploadLogo stores an image and returns its download URL.
	UploadLogo(ctx context.Context, actor *models.Profile, requested *uuid.UUID, data []byte) (string, error)
	// PublicProfile is what the public review form shows for a tenant.
	PublicProfile(ctx context.Context, tenantID uuid.UUID) (*PublicBusinessProfile, error)
}

type SettingsRequest struct {
	BusinessName      string  `json:"business_name"`
	ContactEmail      *string `json:"contact_email"`
	Phone             *string `json:"phone"`
	Address           *string `json:"address"`
	ReviewRedirectURL *string `json:"review_redirect_url"`
}

type PublicBusinessProfile struct {
	BusinessName      string  `json:"business_name"`
	ReviewRedirectURL *string `json:"review_redirect_url,omitempty"`
	LogoURL           string  `json:"logo_url,omitempty"`
}

type settingsService struct {
	settings   repositories.SettingsRepository
	storage    ObjectStorage
	presignTTL time.Duration
}

func NewSettingsService(settings repositories.SettingsRepository, storage ObjectStorage, presignTTL time.Duration) SettingsService {
	return &settingsService{settings: settings, storage: storage, presignTTL: presignTTL}
}

func (s *settingsService) Get(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (*models.BusinessSettings, error) {
	scope, err := tenantScope(actor, requested, models.RoleUser)
	if err != nil {
		return nil, err
	}
	settings, found, err := s.settings.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrNotFound
	}
	return settings, nil
}

func (s *settingsService) Upsert(ctx context.Context, actor *models.Profile, requested *uuid.UUID, req *SettingsRequest) (*models.BusinessSettings, error) {
	scope, err := writeScope(actor, requested, models.RoleTenantAdmin)
	if err != nil {
		return nil, err
	}
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	if req.BusinessName == "" {
		return nil, errors.New("business_name is required")
	}
	if req.ContactEmail != nil && *req.ContactEmail != "" {
		if err := common.ValidateEmail(*req.ContactEmail); err != nil {
			return nil, err
		}
	}
	if req.ReviewRedirectURL != nil && *req.ReviewRedirectURL != "" {
		u, err := url.Parse(*req.ReviewRedirectURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return nil, errors.New("review_redirect_url must be an absolute http(s) URL")
		}
	}

	return s.settings.Upsert(ctx, scope, &models.BusinessSettings{
		BusinessName:      req.BusinessName,
		ContactEmail:      req.ContactEmail,
		Phone:             req.Phone,
		Address:           req.Address,
		ReviewRedirectURL: req.ReviewRedirectURL,
	})
}

func (s *settingsService) UploadLogo(ctx context.Context, actor *models.Profile, requested *uuid.UUID, data []byte) (string, error) {
	if s.storage == nil {
		return "", errors.New("object storage is not configured")
	}
	scope, err := writeScope(actor, requested, models.RoleTenantAdmin)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("logo is empty")
	}
	if len(data) > maxLogoBytes {
		return "", errors.New("logo exceeds 2MB")
	}
	contentType := http.DetectContentType(data)
	ext, ok := map[string]string{"image/png": "png", "image/jpeg": "jpg", "image/webp": "webp", "image/gif": "gif"}[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported logo type %s", contentType)
	}

	object := tenantObject(scope.TenantID(), "branding", "logo."+ext)
	if err := s.storage.Put(ctx, object, data, contentType); err != nil {
		return "", fmt.Errorf("failed to store logo: %w", err)
	}
	if err := s.settings.SetLogo(ctx, scope, object); err != nil {
		return "", err
	}
	return s.storage.PresignedURL(ctx, object, s.presignTTL)
}

func (s *settingsService) PublicProfile(ctx context.Context, tenantID uuid.UUID) (*PublicBusinessProfile, error) {
	settings, found, err := s.settings.Get(ctx, access.PublicScope(tenantID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrNotFound
	}
	profile := &PublicBusinessProfile{
		BusinessName:      settings.BusinessName,
		ReviewRedirectURL: settings.ReviewRedirectURL,
	}
	if settings.LogoObject != nil && s.storage != nil {
		if u, err := s.storage.PresignedURL(ctx, *settings.LogoObject, s.presignTTL); err == nil {
			profile.LogoURL = u
		}
	}
	return profile, nil
}
