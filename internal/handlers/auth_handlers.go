package handlers

import (
	"net/http"
	"strings"
	"time"

	"reviewdesk/internal/access"
	"reviewdesk/internal/authclient"
	"reviewdesk/internal/common"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthHandlers covers sign-in, link verification and invitation acceptance.
// Credentials are checked by the auth provider; this service only binds the
// resulting identity to a profile.
type AuthHandlers struct {
	auth        authclient.Client
	tokens      middleware.IdentityParser
	invitations services.InvitationService
	profiles    services.ProfileResolver
	siteURL     string
}

func NewAuthHandlers(auth authclient.Client, tokens middleware.IdentityParser, invitations services.InvitationService, profiles services.ProfileResolver, siteURL string) *AuthHandlers {
	return &AuthHandlers{
		auth:        auth,
		tokens:      tokens,
		invitations: invitations,
		profiles:    profiles,
		siteURL:     strings.TrimRight(siteURL, "/"),
	}
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn handles POST /v1/auth/sign-in
func (h *AuthHandlers) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateEmail(req.Email); err != nil {
		return common.SendValidationError(c, "email", err.Error())
	}
	if req.Password == "" {
		return common.SendValidationError(c, "password", "password is required")
	}

	session, err := h.auth.SignInWithPassword(c.Request().Context(), common.NormalizeEmail(req.Email), req.Password)
	if err != nil {
		if common.IsTransport(err) {
			metrics.RecordAuthAttempt("password", "unavailable")
			return common.SendTransportError(c)
		}
		metrics.RecordAuthAttempt("password", "rejected")
		return common.SendUnauthorizedError(c)
	}
	metrics.RecordAuthAttempt("password", "success")
	return h.sessionResponse(c, session)
}

type MagicLinkRequest struct {
	Email string `json:"email"`
}

// SendMagicLink handles POST /v1/auth/magic-link. Only existing accounts get
// a link; invitations are the way in for new users. The answer is the same
// either way.
func (h *AuthHandlers) SendMagicLink(c echo.Context) error {
	var req MagicLinkRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateEmail(req.Email); err != nil {
		return common.SendValidationError(c, "email", err.Error())
	}

	err := h.auth.SendMagicLink(c.Request().Context(), common.NormalizeEmail(req.Email), h.siteURL+"/v1/auth/accept", false)
	if common.IsTransport(err) {
		return common.SendTransportError(c)
	}
	if err != nil {
		logger.FromEcho(c).Info("magic link not sent", zap.Error(err))
	}
	metrics.RecordAuthAttempt("magic_link", "requested")
	return c.JSON(http.StatusAccepted, map[string]string{"message": "If the address has an account, a sign-in link is on its way"})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /v1/auth/refresh
func (h *AuthHandlers) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return common.SendValidationError(c, "refresh_token", "refresh_token is required")
	}
	session, err := h.auth.RefreshSession(c.Request().Context(), req.RefreshToken)
	if err != nil {
		if common.IsTransport(err) {
			return common.SendTransportError(c)
		}
		metrics.RecordAuthAttempt("refresh", "rejected")
		return common.SendUnauthorizedError(c)
	}
	metrics.RecordAuthAttempt("refresh", "success")
	return h.sessionResponse(c, session)
}

// SignOut handles POST /v1/auth/sign-out. The cookie is cleared even when
// the provider cannot be reached.
func (h *AuthHandlers) SignOut(c echo.Context) error {
	token := bearerToken(c)
	c.SetCookie(&http.Cookie{Name: "access_token", Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	if identity, ok := middleware.IdentityFrom(c); ok {
		h.profiles.Invalidate(c.Request().Context(), identity.ID)
	}
	if err := h.auth.SignOut(c.Request().Context(), token); err != nil {
		logger.FromEcho(c).Warn("provider sign-out failed", zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// acceptPage is where emailed links land. The provider puts the session in
// the URL fragment, which never reaches the server: the page posts it to
// /v1/auth/accept/session together with the invitation token from the query,
// then offers to set a password.
const acceptPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Accept invitation</title></head>
<body><p id="msg">Checking your link&hellip;</p>
<form id="pw" style="display:none"><input type="password" id="password" minlength="8" placeholder="New password" required> <button type="submit">Save password</button></form>
<script>
(function () {
  var msg = document.getElementById("msg");
  var invalid = "This invitation link is not valid. Please request a new invitation.";
  var query = new URLSearchParams(window.location.search);
  var frag = new URLSearchParams(window.location.hash.replace(/^#/, ""));
  if (window.location.hash) { history.replaceState(null, "", window.location.pathname + window.location.search); }

  if (frag.get("token_hash")) {
    query.set("token_hash", frag.get("token_hash"));
    query.set("type", frag.get("type") || "magiclink");
    window.location.replace(window.location.pathname + "?" + query.toString());
    return;
  }
  var token = query.get("token") || "";
  function post(path, body) {
    return fetch(path, {method: "POST", credentials: "same-origin",
      headers: {"Content-Type": "application/json", "Accept": "application/json"}, body: JSON.stringify(body)})
      .then(function (r) { return r.json().catch(function () { return {}; }).then(function (b) { return {ok: r.ok, body: b}; }); });
  }
  function fail(res) { msg.textContent = (res.body && res.body.error && res.body.error.message) || invalid; }

  if (!frag.get("access_token")) {
    if (!token) { msg.textContent = invalid; return; }
    fetch(window.location.pathname + "?token=" + encodeURIComponent(token), {headers: {"Accept": "application/json"}})
      .then(function (r) { return r.json(); })
      .then(function (b) { msg.textContent = b.state === "ISSUED" ? "Open the sign-in link sent to " + b.email + " to continue." : (b.message || invalid); })
      .catch(function () { msg.textContent = invalid; });
    return;
  }

  post("/v1/auth/accept/session", {
    access_token: frag.get("access_token"),
    refresh_token: frag.get("refresh_token") || "",
    token_type: frag.get("token_type") || "bearer",
    expires_in: parseInt(frag.get("expires_in") || "0", 10),
    token: token
  }).then(function (res) {
    if (!res.ok) { fail(res); return; }
    msg.textContent = "You are signed in. Choose a password to finish.";
    document.getElementById("pw").style.display = "block";
  }).catch(function () { msg.textContent = "The server could not be reached. Please try again."; });

  document.getElementById("pw").addEventListener("submit", function (e) {
    e.preventDefault();
    post("/v1/auth/password", {password: document.getElementById("password").value}).then(function (res) {
      if (res.ok) { window.location.replace("/"); } else { fail(res); }
    });
  });
})();
</script></body></html>`

// AcceptLink handles GET /v1/auth/accept. Browsers get acceptPage. A
// token_hash link is verified here and signs the browser in. JSON clients
// asking about ?token= get its classification; nothing is redeemed.
func (h *AuthHandlers) AcceptLink(c echo.Context) error {
	params := access.FromQuery(c.QueryParams())
	ctx := c.Request().Context()

	switch {
	case params.TokenHash != "":
		verifyType := params.Type
		if verifyType == "" {
			verifyType = "magiclink"
		}
		session, err := h.auth.Verify(ctx, params.TokenHash, verifyType)
		if err != nil {
			if common.IsTransport(err) {
				return common.SendTransportError(c)
			}
			metrics.RecordAuthAttempt("link", "rejected")
			return common.SendInvitationError(c, common.ErrInvitationExpired)
		}
		metrics.RecordAuthAttempt("link", "success")
		return h.acceptedSession(c, session, params.Token)

	case params.Token != "" && wantsJSON(c):
		state, invitation, err := h.invitations.Classify(ctx, params.Token)
		if err != nil {
			return respondError(c, err, "invitation")
		}
		resp := map[string]interface{}{"state": state}
		if invitation != nil && state == models.InvitationIssued {
			resp["email"] = invitation.Email
			resp["expires_at"] = invitation.ExpiresAt
		} else {
			resp["message"] = (&common.InvitationError{Kind: state}).UserMessage()
		}
		return c.JSON(http.StatusOK, resp)
	}

	return c.HTML(http.StatusOK, acceptPage)
}

// AcceptSessionRequest is the fragment session acceptPage posts back, plus
// the invitation token of the landing URL.
type AcceptSessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Token        string `json:"token"`
}

// AcceptSession handles POST /v1/auth/accept/session. The access token is
// verified before the cookie is set; a present invitation token is redeemed
// for that identity.
func (h *AuthHandlers) AcceptSession(c echo.Context) error {
	var req AcceptSessionRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.AccessToken == "" {
		return common.SendValidationError(c, "access_token", "access_token is required")
	}
	identity, err := h.tokens.Identity(req.AccessToken)
	if err != nil {
		metrics.RecordAuthAttempt("link", "rejected")
		return common.SendUnauthorizedError(c)
	}
	metrics.RecordAuthAttempt("link", "success")

	session := &models.Session{
		AccessToken:  req.AccessToken,
		TokenType:    req.TokenType,
		ExpiresIn:    req.ExpiresIn,
		RefreshToken: req.RefreshToken,
		Identity:     identity,
	}
	if req.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
	}
	return h.acceptedSession(c, session, strings.TrimSpace(req.Token))
}

// acceptedSession signs the browser in and, when the link carried an
// invitation token, redeems it for the session's identity.
func (h *AuthHandlers) acceptedSession(c echo.Context, session *models.Session, token string) error {
	if token == "" {
		return h.sessionResponse(c, session)
	}
	result, err := h.invitations.Accept(c.Request().Context(), session.Identity, token)
	if err != nil {
		return respondError(c, err, "invitation")
	}
	h.setSessionCookie(c, session)
	return c.JSON(http.StatusOK, map[string]interface{}{"session": session, "invitation": result})
}

// AcceptInvitationRequest deliberately has no role or tenant: both come
// from the stored invitation.
type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

// AcceptInvitation handles POST /v1/auth/accept
func (h *AuthHandlers) AcceptInvitation(c echo.Context) error {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	var req AcceptInvitationRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.Token == "" {
		req.Token = c.QueryParam("token")
	}

	result, err := h.invitations.Accept(c.Request().Context(), identity, req.Token)
	if err != nil {
		return respondError(c, err, "invitation")
	}
	return c.JSON(http.StatusOK, result)
}

type SetPasswordRequest struct {
	Password string `json:"password"`
}

// SetPassword handles POST /v1/auth/password, used by invitees after
// accepting. Retrying after a failure is safe.
func (h *AuthHandlers) SetPassword(c echo.Context) error {
	var req SetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := h.invitations.SetPassword(c.Request().Context(), bearerToken(c), req.Password); err != nil {
		return respondError(c, err, "account")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/auth/me
func (h *AuthHandlers) Me(c echo.Context) error {
	profile := middleware.ProfileFrom(c)
	if profile == nil {
		return common.SendUnauthorizedError(c)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *AuthHandlers) sessionResponse(c echo.Context, session *models.Session) error {
	h.setSessionCookie(c, session)
	return c.JSON(http.StatusOK, session)
}

func (h *AuthHandlers) setSessionCookie(c echo.Context, session *models.Session) {
	c.SetCookie(&http.Cookie{
		Name:     "access_token",
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(h.siteURL, "https://"),
	})
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
