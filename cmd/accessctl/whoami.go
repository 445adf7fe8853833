package main

import (
	"context"
	"errors"

	"reviewdesk/internal/access"
	"reviewdesk/internal/models"
	"reviewdesk/internal/session"

	"github.com/google/uuid"
)

type whoamiOptions struct {
	AccessToken string
	Email       string
	Password    string
	Location    string
	Required    models.Role
	PublicEntry string
}

type tenantChecker interface {
	IsSuspended(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

type whoamiDeps struct {
	Auth     session.Authenticator
	Resolver session.Resolver
	Tenants  tenantChecker
}

type whoamiReport struct {
	Identity        *models.Identity `json:"identity,omitempty"`
	Profile         *models.Profile  `json:"profile,omitempty"`
	ProfileError    string           `json:"profile_error,omitempty"`
	TenantSuspended bool             `json:"tenant_suspended"`
	Location        string           `json:"location"`
	Outcome         string           `json:"outcome"`
	Redirect        string           `json:"redirect,omitempty"`
	Reason          string           `json:"reason,omitempty"`
}

// whoami drives the client-side session lifecycle once: establish the
// session, let the tracker resolve its profile, then ask the navigator about
// opts.Location.
func whoami(ctx context.Context, deps whoamiDeps, opts whoamiOptions) (*whoamiReport, error) {
	if opts.AccessToken == "" && opts.Email == "" {
		return nil, errors.New("one of -token or -email is required")
	}

	store := session.NewStore(deps.Auth)
	defer store.Teardown()
	tracker := session.NewProfileTracker(deps.Resolver)

	settled := make(chan session.ProfileState, 1)
	tracker.OnCommit(func(s session.ProfileState) {
		if s.Resolving {
			return
		}
		select {
		case settled <- s:
		default:
		}
	})
	stop := tracker.Follow(ctx, store)
	defer stop()

	var bootstrap *models.Session
	if opts.AccessToken != "" {
		bootstrap = &models.Session{AccessToken: opts.AccessToken}
	}
	if err := store.Init(ctx, bootstrap); err != nil {
		return nil, err
	}
	if bootstrap == nil {
		if _, err := store.SignIn(ctx, opts.Email, opts.Password); err != nil {
			return nil, err
		}
	}

	var state session.ProfileState
	select {
	case state = <-settled:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	report := &whoamiReport{Identity: state.Identity, Profile: state.Profile, Location: opts.Location}
	if state.Err != nil {
		report.ProfileError = state.Err.Error()
	}
	if p := state.Profile; p != nil && p.Role != models.RoleSuperAdmin && p.TenantID != nil && deps.Tenants != nil {
		suspended, err := deps.Tenants.IsSuspended(ctx, *p.TenantID)
		if err != nil {
			return nil, err
		}
		report.TenantSuspended = suspended
	}

	nav := session.NewNavigator(opts.PublicEntry)
	decision, _ := nav.Visit(opts.Location, opts.Required, state, report.TenantSuspended)
	report.Outcome = decision.Outcome.String()
	report.Reason = decision.Reason
	if decision.Outcome == access.OutcomeRedirect {
		report.Redirect = decision.Location
	}
	return report, nil
}
