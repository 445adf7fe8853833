package repositories

import (
	"context"
	"errors"
	"fmt"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset shared by a pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools.
type DBTX interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	setTenantSQL = `SELECT set_config('app.current_tenant', $1, true)`
	bypassRLSSQL = `SELECT set_config('app.bypass_rls', 'on', true)`
)

// inTx runs fn in a transaction, committing only when fn succeeds.
func inTx(ctx context.Context, db DBTX, op string, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return wrapErr(op+".begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr(op+".commit", err)
	}
	return nil
}

// inTenantTx is inTx with app.current_tenant set for the row level security
// policies. The setting is transaction-local.
func inTenantTx(ctx context.Context, db DBTX, scope access.Scope, op string, fn func(tx pgx.Tx) error) error {
	return inTx(ctx, db, op, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, setTenantSQL, scope.String()); err != nil {
			return wrapErr(op+".set_tenant", err)
		}
		return fn(tx)
	})
}

// inPlatformTx is inTx for lookups that are deliberately not tenant scoped:
// identity and token lookups, the master panel and maintenance jobs. The
// row level security policies admit every row while app.bypass_rls is on;
// the setting is transaction-local.
func inPlatformTx(ctx context.Context, db DBTX, op string, fn func(tx pgx.Tx) error) error {
	return inTx(ctx, db, op, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, bypassRLSSQL); err != nil {
			return wrapErr(op+".bypass_rls", err)
		}
		return fn(tx)
	})
}

// wrapErr classifies a pgx error. Server-side errors keep their cause,
// missing rows become ErrNotFound and everything else is a transport failure.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, common.ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var invErr *common.InvitationError
	if errors.As(err, &invErr) || errors.Is(err, common.ErrAccessDenied) || errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrConflict) {
		return err
	}
	return common.NewTransportError(op, err)
}

// optional converts pgx.ErrNoRows into found=false.
func optional(op string, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, wrapErr(op, err)
}
