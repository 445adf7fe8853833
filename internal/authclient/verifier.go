package authclient

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Claims are the access-token claims issued by the auth provider.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Identity converts the verified claims into an identity.
func (c *Claims) Identity() (models.Identity, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid subject claim: %w", err)
	}
	identity := models.Identity{ID: id, Email: common.NormalizeEmail(c.Email)}
	if name, ok := c.UserMetadata["full_name"].(string); ok {
		identity.FullName = name
	}
	return identity, nil
}

// Verifier validates access tokens either with the shared HS256 secret or
// against the provider's JWKS.
type Verifier struct {
	keyFunc  jwt.Keyfunc
	methods  []string
	audience string
	jwks     *keyfunc.JWKS
}

// NewHMACVerifier verifies tokens signed with a shared secret.
func NewHMACVerifier(secret, audience string) *Verifier {
	key := []byte(secret)
	return &Verifier{
		keyFunc:  func(*jwt.Token) (interface{}, error) { return key, nil },
		methods:  []string{jwt.SigningMethodHS256.Alg()},
		audience: audience,
	}
}

// NewJWKSVerifier fetches the key set and keeps it refreshed in the background.
func NewJWKSVerifier(jwksURL, audience string) (*Verifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.L().Warn("JWKS refresh failed", zap.String("url", jwksURL), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}
	return &Verifier{
		keyFunc:  jwks.Keyfunc,
		methods:  []string{"RS256", "ES256"},
		audience: audience,
		jwks:     jwks,
	}, nil
}

// NewVerifier prefers the JWKS endpoint when one is configured.
func NewVerifier(secret, jwksURL, audience string) (*Verifier, error) {
	if jwksURL != "" {
		return NewJWKSVerifier(jwksURL, audience)
	}
	if secret == "" {
		return nil, errors.New("no token verification key configured")
	}
	return NewHMACVerifier(secret, audience), nil
}

// Parse validates the token and returns its claims. Every failure matches
// common.ErrUnauthenticated.
func (v *Verifier) Parse(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, common.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUnauthenticated, err)
	}
	if !token.Valid {
		return nil, common.ErrUnauthenticated
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: invalid subject", common.ErrUnauthenticated)
	}
	return claims, nil
}

// Identity validates the token and returns the identity it asserts.
func (v *Verifier) Identity(tokenString string) (models.Identity, error) {
	claims, err := v.Parse(tokenString)
	if err != nil {
		return models.Identity{}, err
	}
	return claims.Identity()
}

// Close stops the background JWKS refresh.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
