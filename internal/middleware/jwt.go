package middleware

import (
	"errors"

	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"
	"reviewdesk/internal/models"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const identityContextKey = "identity"

// Access tokens are read from the Authorization header first; the cookie
// covers EventSource requests, which cannot set headers.
const defaultTokenLookup = "header:Authorization:Bearer ,cookie:access_token"

// IdentityParser verifies an access token and returns its subject.
// *authclient.Verifier implements it.
type IdentityParser interface {
	Identity(token string) (models.Identity, error)
}

// JWTMiddleware rejects requests without a valid access token with 401.
// It is used on endpoints that act on the identity alone, before any
// profile exists (invitation acceptance, password set).
func JWTMiddleware(parser IdentityParser) echo.MiddlewareFunc {
	return jwtMiddleware(parser, false)
}

// OptionalJWTMiddleware attaches the identity when a valid token is
// present and otherwise continues anonymously, leaving the decision to the
// route guard.
func OptionalJWTMiddleware(parser IdentityParser) echo.MiddlewareFunc {
	return jwtMiddleware(parser, true)
}

func jwtMiddleware(parser IdentityParser, optional bool) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: defaultTokenLookup,
		ContextKey:  identityContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			identity, err := parser.Identity(auth)
			if err != nil {
				return nil, err
			}
			return identity, nil
		},
		SuccessHandler: func(c echo.Context) {
			identity, _ := c.Get(identityContextKey).(models.Identity)
			ctx := common.WithIdentity(c.Request().Context(), identity)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.Stringer("identity_id", identity.ID)))
			c.SetRequest(c.Request().WithContext(ctx))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var parseErr *echojwt.TokenParsingError
			if errors.As(err, &parseErr) {
				metrics.RecordAuthAttempt("jwt", "invalid")
				logger.FromEcho(c).Debug("rejected access token", zap.Error(parseErr.Err))
			}
			if optional {
				return nil
			}
			return common.SendUnauthorizedError(c)
		},
		ContinueOnIgnoredError: optional,
	})
}

// IdentityFrom returns the identity placed by the JWT middlewares.
func IdentityFrom(c echo.Context) (models.Identity, bool) {
	return common.GetIdentityFromContext(c.Request().Context())
}
