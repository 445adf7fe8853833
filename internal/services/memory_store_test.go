package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
)

// memoryStore is an in-memory invitation and profile store with the same
// redemption rules as the SQL repositories.
type memoryStore struct {
	mu          sync.Mutex
	invitations map[uuid.UUID]*models.Invitation
	profiles    map[uuid.UUID]*models.Profile
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		invitations: make(map[uuid.UUID]*models.Invitation),
		profiles:    make(map[uuid.UUID]*models.Profile),
	}
}

func (s *memoryStore) profileCount(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.profiles {
		if p.Email == common.NormalizeEmail(email) {
			n++
		}
	}
	return n
}

// InvitationRepository

func (s *memoryStore) Create(_ context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inv
	s.invitations[inv.ID] = &cp
	return nil
}

func (s *memoryStore) FindByTokenHash(_ context.Context, tokenHash string) (*models.Invitation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.TokenHash == tokenHash {
			cp := *inv
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (s *memoryStore) Redeem(_ context.Context, tokenHash string, identity models.Identity, now time.Time) (*models.InvitationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.TokenHash != tokenHash {
			continue
		}
		if !inv.MatchesEmail(identity.Email) {
			return nil, common.ErrInvitationInvalidToken
		}
		switch inv.State(now) {
		case models.InvitationAlreadyUsed:
			return nil, common.ErrInvitationAlreadyUsed
		case models.InvitationExpired:
			return nil, common.ErrInvitationExpired
		}
		return s.bindLocked(inv, identity, now)
	}
	return nil, common.ErrInvitationInvalidToken
}

func (s *memoryStore) RedeemLatestForEmail(_ context.Context, identity models.Identity, now time.Time) (*models.InvitationResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []*models.Invitation
	for _, inv := range s.invitations {
		if inv.MatchesEmail(identity.Email) && inv.IsActive(now) {
			candidates = append(candidates, inv)
		}
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	result, err := s.bindLocked(candidates[0], identity, now)
	return result, err == nil, err
}

func (s *memoryStore) bindLocked(inv *models.Invitation, identity models.Identity, now time.Time) (*models.InvitationResult, error) {
	if existing, ok := s.profiles[identity.ID]; ok && existing.IsSuperAdmin() {
		return nil, common.ErrAccessDenied
	}
	usedAt := now
	usedBy := identity.ID
	inv.UsedAt = &usedAt
	inv.UsedBy = &usedBy

	tenantID := inv.TenantID
	profile := &models.Profile{
		ID:       identity.ID,
		Email:    common.NormalizeEmail(identity.Email),
		FullName: identity.FullName,
		Role:     inv.Role,
		TenantID: &tenantID,
		Status:   models.ProfileStatusActive,
	}
	s.profiles[identity.ID] = profile

	invCopy := *inv
	profileCopy := *profile
	return &models.InvitationResult{State: models.InvitationProfileBound, Invitation: &invCopy, Profile: &profileCopy}, nil
}

func (s *memoryStore) ListPending(_ context.Context, scope access.Scope, _, _ int) ([]*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Invitation{}
	if scope.IsEmpty() {
		return out, nil
	}
	for _, inv := range s.invitations {
		if inv.TenantID == scope.TenantID() && inv.UsedAt == nil {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) Revoke(_ context.Context, scope access.Scope, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[id]
	if !ok || scope.IsEmpty() || inv.TenantID != scope.TenantID() || inv.UsedAt != nil {
		return common.ErrNotFound
	}
	delete(s.invitations, id)
	return nil
}

func (s *memoryStore) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, inv := range s.invitations {
		if inv.ExpiresAt.Before(before) {
			delete(s.invitations, id)
			n++
		}
	}
	return n, nil
}

// profileStore adapts memoryStore to the profile repository.
type profileStore struct {
	*memoryStore
}

func (p profileStore) GetByID(_ context.Context, id uuid.UUID) (*models.Profile, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prof, ok := p.profiles[id]; ok {
		cp := *prof
		return &cp, true, nil
	}
	return nil, false, nil
}

func (p profileStore) GetByEmail(_ context.Context, email string) (*models.Profile, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, prof := range p.profiles {
		if prof.Email == common.NormalizeEmail(email) {
			cp := *prof
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (p profileStore) CreateDefault(_ context.Context, profile *models.Profile) (*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.profiles[profile.ID]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *profile
	cp.Email = common.NormalizeEmail(cp.Email)
	p.profiles[profile.ID] = &cp
	out := cp
	return &out, nil
}

func (p profileStore) List(context.Context, *models.ProfileFilter) ([]*models.Profile, error) {
	return nil, nil
}

func (p profileStore) ListByTenant(context.Context, access.Scope, int, int) ([]*models.Profile, error) {
	return nil, nil
}

func (p profileStore) UpdateRole(context.Context, uuid.UUID, models.Role, *uuid.UUID) (*models.Profile, error) {
	return nil, common.ErrNotFound
}

func (p profileStore) UpdateStatus(context.Context, uuid.UUID, string) (*models.Profile, error) {
	return nil, common.ErrNotFound
}
