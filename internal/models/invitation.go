package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// InvitationState is a step of the invitation acceptance state machine.
type InvitationState string

const (
	InvitationIssued       InvitationState = "ISSUED"
	InvitationRedeemed     InvitationState = "REDEEMED"
	InvitationProfileBound InvitationState = "PROFILE_BOUND"
	InvitationExpired      InvitationState = "EXPIRED"
	InvitationAlreadyUsed  InvitationState = "ALREADY_USED"
	InvitationInvalidToken InvitationState = "INVALID_TOKEN"
)

// Invitation grants one email the right to bind to a tenant with a role, once.
type Invitation struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	TenantID  uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Role      Role       `json:"role" db:"role"`
	TokenHash string     `json:"-" db:"token_hash"`
	InvitedBy *uuid.UUID `json:"invited_by" db:"invited_by"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt    *time.Time `json:"used_at" db:"used_at"`
	UsedBy    *uuid.UUID `json:"used_by" db:"used_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// State classifies the invitation at the given instant. A used invitation is
// always ALREADY_USED, even after it expires, so replays answer the same way.
func (i *Invitation) State(now time.Time) InvitationState {
	if i.UsedAt != nil {
		return InvitationAlreadyUsed
	}
	if !now.Before(i.ExpiresAt) {
		return InvitationExpired
	}
	return InvitationIssued
}

// IsActive reports whether the invitation can still be redeemed.
func (i *Invitation) IsActive(now time.Time) bool {
	return i.State(now) == InvitationIssued
}

// MatchesEmail compares emails case-insensitively.
func (i *Invitation) MatchesEmail(email string) bool {
	return strings.EqualFold(strings.TrimSpace(i.Email), strings.TrimSpace(email))
}

// InvitationResult is returned by a successful redemption.
type InvitationResult struct {
	State      InvitationState `json:"state"`
	Invitation *Invitation     `json:"invitation"`
	Profile    *Profile        `json:"profile"`
}
