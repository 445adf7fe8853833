package access

import (
	"net/url"
	"strings"

	"reviewdesk/internal/common"
)

// AcceptanceParams are the values an invitation or magic link carries.
// They may arrive in the query string or in the URL fragment.
type AcceptanceParams struct {
	Token       string `json:"token"`
	TokenHash   string `json:"token_hash"`
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// HasInvitationToken reports whether an application invitation token is present.
func (p AcceptanceParams) HasInvitationToken() bool {
	return p.Token != ""
}

// ParseAcceptanceParams reads link parameters from rawURL. Query values win;
// the fragment fills whatever the query lacks.
func ParseAcceptanceParams(rawURL string) (AcceptanceParams, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return AcceptanceParams{}, common.ErrInvitationInvalidToken
	}

	params := fromValues(u.Query())
	if u.Fragment != "" {
		if fragment, err := url.ParseQuery(strings.TrimPrefix(u.Fragment, "#")); err == nil {
			params = params.merge(fromValues(fragment))
		}
	}

	if params.Token == "" && params.TokenHash == "" && params.AccessToken == "" {
		return params, common.ErrInvitationInvalidToken
	}
	return params, nil
}

// FromQuery reads link parameters from already-parsed values.
func FromQuery(values url.Values) AcceptanceParams {
	return fromValues(values)
}

func (p AcceptanceParams) merge(other AcceptanceParams) AcceptanceParams {
	if p.Token == "" {
		p.Token = other.Token
	}
	if p.TokenHash == "" {
		p.TokenHash = other.TokenHash
	}
	if p.Type == "" {
		p.Type = other.Type
	}
	if p.AccessToken == "" {
		p.AccessToken = other.AccessToken
	}
	return p
}

func fromValues(v url.Values) AcceptanceParams {
	return AcceptanceParams{
		Token:       strings.TrimSpace(v.Get("token")),
		TokenHash:   strings.TrimSpace(v.Get("token_hash")),
		Type:        strings.TrimSpace(v.Get("type")),
		AccessToken: strings.TrimSpace(v.Get("access_token")),
	}
}
