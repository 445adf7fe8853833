package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reviewdesk/internal/common"
	"reviewdesk/internal/models"

	"github.com/google/uuid"
)

// banForever is the ban duration GoTrue treats as permanent.
const banForever = "876000h"

// Client talks to the hosted auth provider's REST API (GoTrue compatible).
type Client interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	// SendMagicLink mails a one-time sign-in link that lands on redirectTo.
	SendMagicLink(ctx context.Context, email, redirectTo string, createUser bool) error
	// Verify exchanges an e-mailed token hash for a session.
	Verify(ctx context.Context, tokenHash, verifyType string) (*models.Session, error)
	GetUser(ctx context.Context, accessToken string) (*models.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
	UpdatePassword(ctx context.Context, accessToken, password string) error

	// Admin operations use the service key.
	InviteUserByEmail(ctx context.Context, email, redirectTo string, data map[string]any) error
	BanUser(ctx context.Context, userID uuid.UUID) error
}

// APIError is a non-2xx answer from the auth provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth provider returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth provider returned %d: %s", e.Status, e.Message)
}

// Is lets callers match rejected credentials with common.ErrUnauthenticated.
func (e *APIError) Is(target error) bool {
	if target == common.ErrUnauthenticated {
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

// IsUserExists reports whether err says the e-mail already has an account.
func IsUserExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == "email_exists" || apiErr.Code == "user_already_exists" {
		return true
	}
	return apiErr.Status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(apiErr.Message), "already")
}

type restClient struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// New builds a client for the provider at providerURL, e.g. https://xyz.supabase.co.
func New(providerURL, anonKey, serviceKey string) Client {
	base := strings.TrimRight(providerURL, "/")
	if !strings.HasSuffix(base, "/auth/v1") {
		base += "/auth/v1"
	}
	return &restClient{
		baseURL:    base,
		anonKey:    anonKey,
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type wireUser struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u wireUser) identity() models.Identity {
	id := models.Identity{ID: u.ID, Email: common.NormalizeEmail(u.Email)}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	return id
}

type wireSession struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         wireUser `json:"user"`
}

func (s wireSession) session() *models.Session {
	out := &models.Session{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		RefreshToken: s.RefreshToken,
		Identity:     s.User.identity(),
	}
	switch {
	case s.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		out.ExpiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return out
}

func (c *restClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	body := map[string]string{"email": common.NormalizeEmail(email), "password": password}
	var out wireSession
	if err := c.do(ctx, "auth.sign_in", http.MethodPost, "/token?grant_type=password", c.anonKey, body, &out); err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *restClient) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	var out wireSession
	if err := c.do(ctx, "auth.refresh", http.MethodPost, "/token?grant_type=refresh_token", c.anonKey, body, &out); err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *restClient) SendMagicLink(ctx context.Context, email, redirectTo string, createUser bool) error {
	body := map[string]any{"email": common.NormalizeEmail(email), "create_user": createUser}
	return c.do(ctx, "auth.otp", http.MethodPost, withRedirect("/otp", redirectTo), c.anonKey, body, nil)
}

func (c *restClient) Verify(ctx context.Context, tokenHash, verifyType string) (*models.Session, error) {
	if verifyType == "" {
		verifyType = "email"
	}
	body := map[string]string{"token_hash": tokenHash, "type": verifyType}
	var out wireSession
	if err := c.do(ctx, "auth.verify", http.MethodPost, "/verify", c.anonKey, body, &out); err != nil {
		return nil, err
	}
	return out.session(), nil
}

func (c *restClient) GetUser(ctx context.Context, accessToken string) (*models.Identity, error) {
	var out wireUser
	if err := c.do(ctx, "auth.get_user", http.MethodGet, "/user", accessToken, nil, &out); err != nil {
		return nil, err
	}
	id := out.identity()
	return &id, nil
}

func (c *restClient) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, "auth.sign_out", http.MethodPost, "/logout", accessToken, nil, nil)
}

// UpdatePassword sets the password on the account behind accessToken. It is
// idempotent, so callers may retry it.
func (c *restClient) UpdatePassword(ctx context.Context, accessToken, password string) error {
	body := map[string]string{"password": password}
	return c.do(ctx, "auth.update_password", http.MethodPut, "/user", accessToken, body, nil)
}

func (c *restClient) InviteUserByEmail(ctx context.Context, email, redirectTo string, data map[string]any) error {
	body := map[string]any{"email": common.NormalizeEmail(email)}
	if len(data) > 0 {
		body["data"] = data
	}
	return c.do(ctx, "auth.invite", http.MethodPost, withRedirect("/invite", redirectTo), c.serviceKey, body, nil)
}

func (c *restClient) BanUser(ctx context.Context, userID uuid.UUID) error {
	body := map[string]string{"ban_duration": banForever}
	return c.do(ctx, "auth.ban", http.MethodPut, "/admin/users/"+userID.String(), c.serviceKey, body, nil)
}

func withRedirect(path, redirectTo string) string {
	if redirectTo == "" {
		return path
	}
	return path + "?redirect_to=" + url.QueryEscape(redirectTo)
}

// do sends one request. Network failures and 5xx answers become
// *common.TransportError; other non-2xx answers become *APIError.
func (c *restClient) do(ctx context.Context, op, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("apikey", c.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return common.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return common.NewTransportError(op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(raw, &payload)

	apiErr := &APIError{Status: resp.StatusCode, Code: payload.ErrorCode}
	if apiErr.Code == "" {
		if code, ok := payload.Code.(string); ok {
			apiErr.Code = code
		} else if payload.Error != "" {
			apiErr.Code = payload.Error
		}
	}
	for _, msg := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
		if msg != "" {
			apiErr.Message = msg
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
