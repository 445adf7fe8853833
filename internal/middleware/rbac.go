package middleware

import (
	"context"
	"net/http"

	"reviewdesk/internal/access"
	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const profileContextKey = "profile"

// ProfileSource resolves, and on first sign-in creates, the caller's profile.
type ProfileSource interface {
	ResolveOrCreate(ctx context.Context, identity models.Identity) (*models.Profile, error)
}

// TenantStatusSource reports whether a tenant has been suspended.
type TenantStatusSource interface {
	IsSuspended(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// RouteGuard gates protected routes by role. Requests it turns away are
// redirected to the public entry with 303; no profile is looked up for
// anonymous requests.
type RouteGuard struct {
	profiles    ProfileSource
	tenants     TenantStatusSource
	publicEntry string
}

func NewRouteGuard(profiles ProfileSource, tenants TenantStatusSource, publicEntry string) *RouteGuard {
	return &RouteGuard{profiles: profiles, tenants: tenants, publicEntry: publicEntry}
}

// RequireRole admits profiles holding at least role; access.AnyRole admits
// every signed-in profile.
func (g *RouteGuard) RequireRole(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			log := logger.FromEcho(c)

			in := access.GuardInput{
				Location:    c.Request().URL.Path,
				Required:    role,
				PublicEntry: g.publicEntry,
			}

			identity, authenticated := common.GetIdentityFromContext(ctx)
			in.Authenticated = authenticated
			if authenticated {
				profile, err := g.profiles.ResolveOrCreate(ctx, identity)
				switch {
				case common.IsTransport(err):
					log.Error("profile lookup failed", zap.Error(err))
					return common.SendTransportError(c)
				case err != nil:
					log.Warn("no usable profile for identity", zap.Error(err))
				default:
					in.Profile = profile
				}

				if in.Profile != nil && !in.Profile.IsSuperAdmin() && in.Profile.TenantID != nil && g.tenants != nil {
					suspended, err := g.tenants.IsSuspended(ctx, *in.Profile.TenantID)
					if common.IsTransport(err) {
						log.Error("tenant status lookup failed", zap.Error(err))
						return common.SendTransportError(c)
					}
					in.TenantSuspended = suspended || err != nil
				}
			}

			decision := access.Evaluate(in)
			metrics.RecordGuardDecision(decision.Outcome.String(), decision.Reason)

			switch decision.Outcome {
			case access.OutcomeAllow:
				ctx = common.WithProfile(ctx, in.Profile)
				ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("role", in.Profile.Role.String())))
				c.SetRequest(c.Request().WithContext(ctx))
				c.Set(profileContextKey, in.Profile)
				return next(c)
			case access.OutcomeRedirect:
				log.Info("guard redirect",
					zap.String("location", in.Location),
					zap.String("reason", decision.Reason))
				c.Response().Header().Set("X-Guard-Reason", decision.Reason)
				return c.Redirect(http.StatusSeeOther, decision.Location)
			default:
				// the public entry itself is guarded; redirecting would loop
				c.Response().Header().Set("X-Guard-Reason", decision.Reason)
				return common.SendForbiddenError(c, "access denied")
			}
		}
	}
}

// ProfileFrom returns the profile admitted by the route guard.
func ProfileFrom(c echo.Context) *models.Profile {
	if p, ok := c.Get(profileContextKey).(*models.Profile); ok && p != nil {
		return p
	}
	p, _ := common.GetProfileFromContext(c.Request().Context())
	return p
}
