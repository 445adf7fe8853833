package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/authclient"
	"reviewdesk/internal/caching"
	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLength = 8

// InvitationMailer delivers acceptance links. Implementations queue the
// delivery; a returned error means nothing was queued.
type InvitationMailer interface {
	SendInvitation(ctx context.Context, email, acceptURL string) error
}

type InvitationService interface {
	Issue(ctx context.Context, actor *models.Profile, req *IssueInvitationRequest) (*IssuedInvitation, error)
	// Accept redeems token for identity. Role and tenant come from the
	// stored invitation only. Failures are *common.InvitationError.
	Accept(ctx context.Context, identity models.Identity, token string) (*models.InvitationResult, error)
	// Classify reports the state of a token without redeeming it.
	Classify(ctx context.Context, token string) (models.InvitationState, *models.Invitation, error)
	BindOnSignup(ctx context.Context, identity models.Identity) (*models.Profile, error)
	// SetPassword sets the password of the account behind accessToken. It
	// is safe to call again after a failure.
	SetPassword(ctx context.Context, accessToken, password string) error
	ListPending(ctx context.Context, actor *models.Profile, requested *uuid.UUID, limit, offset int) ([]*models.Invitation, error)
	Revoke(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) error
}

type IssueInvitationRequest struct {
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	TenantID *uuid.UUID  `json:"tenant_id"`
}

// IssuedInvitation carries the plaintext token exactly once.
type IssuedInvitation struct {
	Invitation  *models.Invitation `json:"invitation"`
	Token       string             `json:"-"`
	AcceptURL   string             `json:"accept_url"`
	EmailQueued bool               `json:"email_queued"`
}

// InvitationLinks builds and mails acceptance links.
type InvitationLinks struct {
	BaseURL string
	TTL     time.Duration
	Mailer  InvitationMailer
}

// AcceptURL is the link mailed to the invitee.
func (l InvitationLinks) AcceptURL(token string) string {
	return strings.TrimRight(l.BaseURL, "/") + "/v1/auth/accept?token=" + url.QueryEscape(token)
}

func (l InvitationLinks) send(ctx context.Context, issued *IssuedInvitation) {
	if l.Mailer == nil {
		return
	}
	if err := l.Mailer.SendInvitation(ctx, issued.Invitation.Email, issued.AcceptURL); err != nil {
		logger.FromContext(ctx).Warn("failed to queue invitation email",
			zap.Stringer("invitation_id", issued.Invitation.ID), zap.Error(err))
		return
	}
	issued.EmailQueued = true
}

// newInvitation builds an invitation row and its plaintext token.
func (l InvitationLinks) newInvitation(email string, tenantID uuid.UUID, role models.Role, invitedBy *uuid.UUID, now time.Time) (*models.Invitation, string, error) {
	token, err := GenerateInvitationToken()
	if err != nil {
		return nil, "", err
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &models.Invitation{
		ID:        uuid.New(),
		Email:     common.NormalizeEmail(email),
		TenantID:  tenantID,
		Role:      role,
		TokenHash: HashInvitationToken(token),
		InvitedBy: invitedBy,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, token, nil
}

// GenerateInvitationToken returns 32 random bytes, base64url encoded.
func GenerateInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashInvitationToken is the only form of the token that is stored.
func HashInvitationToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

type invitationService struct {
	invitations repositories.InvitationRepository
	profiles    repositories.ProfileRepository
	tenants     repositories.TenantRepository
	auth        authclient.Client
	cache       caching.CacheService
	audit       AuditLogsService
	links       InvitationLinks
	now         func() time.Time
}

func NewInvitationService(
	invitations repositories.InvitationRepository,
	profiles repositories.ProfileRepository,
	tenants repositories.TenantRepository,
	auth authclient.Client,
	cache caching.CacheService,
	audit AuditLogsService,
	links InvitationLinks,
) InvitationService {
	return &invitationService{
		invitations: invitations,
		profiles:    profiles,
		tenants:     tenants,
		auth:        auth,
		cache:       cache,
		audit:       audit,
		links:       links,
		now:         time.Now,
	}
}

func (s *invitationService) Issue(ctx context.Context, actor *models.Profile, req *IssueInvitationRequest) (*IssuedInvitation, error) {
	if err := requireRole(actor, models.RoleTenantAdmin); err != nil {
		return nil, err
	}
	if err := common.ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", req.Role)
	}
	if !access.CanAssignRole(actor.Role, req.Role) {
		return nil, common.ErrAccessDenied
	}

	scope, err := access.ScopeFor(actor, req.TenantID)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, common.ErrAccessDenied
	}

	tenant, found, err := s.tenants.GetByID(ctx, scope.TenantID())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrNotFound
	}
	if !tenant.IsActive() && !actor.IsSuperAdmin() {
		return nil, common.ErrAccessDenied
	}

	invitation, token, err := s.links.newInvitation(req.Email, tenant.ID, req.Role, actorID(actor), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.invitations.Create(ctx, invitation); err != nil {
		return nil, err
	}
	metrics.RecordInvitation(string(models.InvitationIssued))

	issued := &IssuedInvitation{Invitation: invitation, Token: token, AcceptURL: s.links.AcceptURL(token)}
	s.links.send(ctx, issued)

	logAudit(ctx, s.audit, &models.AuditLog{
		TenantID:  &invitation.TenantID,
		TableName: "invitations",
		RecordID:  invitation.ID.String(),
		Action:    models.ActionInvite,
		NewValues: models.JSONB{"email": invitation.Email, "role": invitation.Role, "expires_at": invitation.ExpiresAt},
		ChangedBy: actorID(actor),
	})
	logger.FromContext(ctx).Info("invitation issued",
		zap.Stringer("invitation_id", invitation.ID),
		zap.Stringer("tenant_id", invitation.TenantID),
		zap.String("role", invitation.Role.String()))
	return issued, nil
}

func (s *invitationService) Accept(ctx context.Context, identity models.Identity, token string) (*models.InvitationResult, error) {
	if identity.ID == uuid.Nil {
		return nil, common.ErrUnauthenticated
	}
	if strings.TrimSpace(token) == "" {
		metrics.RecordInvitation(string(models.InvitationInvalidToken))
		return nil, common.ErrInvitationInvalidToken
	}

	result, err := s.invitations.Redeem(ctx, HashInvitationToken(token), identity, s.now())
	if err != nil {
		if invErr, ok := common.AsInvitationError(err); ok {
			metrics.RecordInvitation(string(invErr.Kind))
			logger.FromContext(ctx).Info("invitation rejected",
				zap.Stringer("identity_id", identity.ID), zap.String("state", string(invErr.Kind)))
		}
		return nil, err
	}
	s.afterRedeem(ctx, identity, result)
	return result, nil
}

func (s *invitationService) Classify(ctx context.Context, token string) (models.InvitationState, *models.Invitation, error) {
	if strings.TrimSpace(token) == "" {
		return models.InvitationInvalidToken, nil, nil
	}
	invitation, found, err := s.invitations.FindByTokenHash(ctx, HashInvitationToken(token))
	if err != nil {
		return "", nil, err
	}
	if !found {
		return models.InvitationInvalidToken, nil, nil
	}
	return invitation.State(s.now()), invitation, nil
}

func (s *invitationService) BindOnSignup(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	result, found, err := s.invitations.RedeemLatestForEmail(ctx, identity, s.now())
	if err != nil {
		return nil, err
	}
	if found {
		s.afterRedeem(ctx, identity, result)
		return result.Profile, nil
	}

	profile, err := s.profiles.CreateDefault(ctx, models.NewDefaultProfile(identity))
	if err != nil {
		return nil, err
	}
	invalidateProfile(ctx, s.cache, identity.ID)
	return profile, nil
}

func (s *invitationService) afterRedeem(ctx context.Context, identity models.Identity, result *models.InvitationResult) {
	metrics.RecordInvitation(string(result.State))
	invalidateProfile(ctx, s.cache, identity.ID)

	inv := result.Invitation
	logAudit(ctx, s.audit, &models.AuditLog{
		TenantID:  &inv.TenantID,
		TableName: "invitations",
		RecordID:  inv.ID.String(),
		Action:    models.ActionAccept,
		NewValues: models.JSONB{"profile_id": identity.ID, "role": inv.Role},
		ChangedBy: &identity.ID,
	})
	logger.FromContext(ctx).Info("invitation redeemed",
		zap.Stringer("invitation_id", inv.ID),
		zap.Stringer("identity_id", identity.ID),
		zap.Stringer("tenant_id", inv.TenantID))
}

func (s *invitationService) SetPassword(ctx context.Context, accessToken, password string) error {
	if accessToken == "" {
		return common.ErrUnauthenticated
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = s.auth.UpdatePassword(ctx, accessToken, password)
		if err == nil || !common.IsTransport(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		}
	}
	return err
}

func (s *invitationService) ListPending(ctx context.Context, actor *models.Profile, requested *uuid.UUID, limit, offset int) ([]*models.Invitation, error) {
	scope, err := tenantScope(actor, requested, models.RoleTenantAdmin)
	if err != nil {
		return nil, err
	}
	return s.invitations.ListPending(ctx, scope, limit, offset)
}

func (s *invitationService) Revoke(ctx context.Context, actor *models.Profile, requested *uuid.UUID, id uuid.UUID) error {
	scope, err := tenantScope(actor, requested, models.RoleTenantAdmin)
	if err != nil {
		return err
	}
	if err := s.invitations.Revoke(ctx, scope, id); err != nil {
		return err
	}
	tenantID := scope.TenantID()
	logAudit(ctx, s.audit, &models.AuditLog{
		TenantID:  &tenantID,
		TableName: "invitations",
		RecordID:  id.String(),
		Action:    models.ActionDelete,
		ChangedBy: actorID(actor),
	})
	return nil
}
