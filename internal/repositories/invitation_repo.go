package repositories

import (
	"context"
	"errors"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
)

type InvitationRepository interface {
	Create(ctx context.Context, invitation *models.Invitation) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, bool, error)

	// Redeem locks the invitation, classifies it and binds the profile in one
	// transaction. Failures are *common.InvitationError.
	Redeem(ctx context.Context, tokenHash string, identity models.Identity, now time.Time) (*models.InvitationResult, error)

	// RedeemLatestForEmail redeems the most recently issued active invitation
	// for the identity's email. found is false when there is none.
	RedeemLatestForEmail(ctx context.Context, identity models.Identity, now time.Time) (*models.InvitationResult, bool, error)

	ListPending(ctx context.Context, scope access.Scope, limit, offset int) ([]*models.Invitation, error)
	Revoke(ctx context.Context, scope access.Scope, id uuid.UUID) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type invitationRepo struct {
	db DBTX
}

func NewInvitationRepo(db DBTX) InvitationRepository {
	return &invitationRepo{db: db}
}

var errNoActiveInvitation = errors.New("no active invitation")

const invitationColumns = `id, email, tenant_id, role, token_hash, invited_by, expires_at, used_at, used_by, created_at`

func scanInvitation(row pgx.Row) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := row.Scan(&inv.ID, &inv.Email, &inv.TenantID, &inv.Role, &inv.TokenHash, &inv.InvitedBy, &inv.ExpiresAt, &inv.UsedAt, &inv.UsedBy, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func insertInvitation(ctx context.Context, q Querier, inv *models.Invitation) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO invitations (id, email, tenant_id, role, token_hash, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.Exec(ctx, query, inv.ID, common.NormalizeEmail(inv.Email), inv.TenantID, inv.Role, inv.TokenHash, inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt)
	return wrapErr("invitations.create", err)
}

func (r *invitationRepo) Create(ctx context.Context, invitation *models.Invitation) error {
	return inTenantTx(ctx, r.db, access.TenantScope(invitation.TenantID), "invitations.create", func(tx pgx.Tx) error {
		return insertInvitation(ctx, tx, invitation)
	})
}

// FindByTokenHash looks across tenants; the token is the credential.
func (r *invitationRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, bool, error) {
	var inv *models.Invitation
	var found bool
	err := inPlatformTx(ctx, r.db, "invitations.find", func(tx pgx.Tx) error {
		query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token_hash = $1`
		var err error
		inv, err = scanInvitation(tx.QueryRow(ctx, query, tokenHash))
		found, err = optional("invitations.find", err)
		return err
	})
	if err != nil || !found {
		return nil, false, err
	}
	return inv, true, nil
}

func (r *invitationRepo) Redeem(ctx context.Context, tokenHash string, identity models.Identity, now time.Time) (*models.InvitationResult, error) {
	var result *models.InvitationResult
	err := inPlatformTx(ctx, r.db, "invitations.redeem", func(tx pgx.Tx) error {
		query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token_hash = $1 FOR UPDATE`
		inv, err := scanInvitation(tx.QueryRow(ctx, query, tokenHash))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrInvitationInvalidToken
		}
		if err != nil {
			return wrapErr("invitations.redeem.lock", err)
		}
		if !inv.MatchesEmail(identity.Email) {
			return common.ErrInvitationInvalidToken
		}
		if state := inv.State(now); state != models.InvitationIssued {
			return &common.InvitationError{Kind: state}
		}

		result, err = bindLocked(ctx, tx, inv, identity, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *invitationRepo) RedeemLatestForEmail(ctx context.Context, identity models.Identity, now time.Time) (*models.InvitationResult, bool, error) {
	var result *models.InvitationResult
	err := inPlatformTx(ctx, r.db, "invitations.redeem_latest", func(tx pgx.Tx) error {
		query := `
			SELECT ` + invitationColumns + `
			FROM invitations
			WHERE lower(email) = lower($1) AND used_at IS NULL AND expires_at > $2
			ORDER BY created_at DESC, id DESC
			LIMIT 1
			FOR UPDATE
		`
		inv, err := scanInvitation(tx.QueryRow(ctx, query, identity.Email, now))
		if errors.Is(err, pgx.ErrNoRows) {
			return errNoActiveInvitation
		}
		if err != nil {
			return wrapErr("invitations.redeem_latest.lock", err)
		}

		result, err = bindLocked(ctx, tx, inv, identity, now)
		return err
	})
	if errors.Is(err, errNoActiveInvitation) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// bindLocked marks a locked, active invitation used and binds the profile to
// the invitation's tenant and role.
func bindLocked(ctx context.Context, tx pgx.Tx, inv *models.Invitation, identity models.Identity, now time.Time) (*models.InvitationResult, error) {
	tag, err := tx.Exec(ctx, `UPDATE invitations SET used_at = $1, used_by = $2 WHERE id = $3 AND used_at IS NULL`, now, identity.ID, inv.ID)
	if err != nil {
		return nil, wrapErr("invitations.mark_used", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, common.ErrInvitationAlreadyUsed
	}
	usedAt := now
	usedBy := identity.ID
	inv.UsedAt = &usedAt
	inv.UsedBy = &usedBy

	profile, err := upsertBoundProfile(ctx, tx, identity, inv.Role, inv.TenantID)
	if err != nil {
		return nil, err
	}
	return &models.InvitationResult{State: models.InvitationProfileBound, Invitation: inv, Profile: profile}, nil
}

func (r *invitationRepo) ListPending(ctx context.Context, scope access.Scope, limit, offset int) ([]*models.Invitation, error) {
	if scope.IsEmpty() {
		return []*models.Invitation{}, nil
	}
	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE tenant_id = $1 AND used_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	var invitations []*models.Invitation
	err = inTenantTx(ctx, r.db, scope, "invitations.list_pending", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, scope.TenantID(), limit, offset)
		if err != nil {
			return wrapErr("invitations.list_pending", err)
		}
		defer rows.Close()

		for rows.Next() {
			inv, err := scanInvitation(rows)
			if err != nil {
				return wrapErr("invitations.list_pending", err)
			}
			invitations = append(invitations, inv)
		}
		return wrapErr("invitations.list_pending", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *invitationRepo) Revoke(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	if scope.IsEmpty() {
		return common.ErrNotFound
	}
	return inTenantTx(ctx, r.db, scope, "invitations.revoke", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM invitations WHERE id = $1 AND tenant_id = $2 AND used_at IS NULL`, id, scope.TenantID())
		if err != nil {
			return wrapErr("invitations.revoke", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (r *invitationRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := inPlatformTx(ctx, r.db, "invitations.purge", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM invitations WHERE used_at IS NULL AND expires_at < $1`, before)
		if err != nil {
			return wrapErr("invitations.purge", err)
		}
		purged = tag.RowsAffected()
		return nil
	})
	return purged, err
}
