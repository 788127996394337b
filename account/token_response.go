package account

import (
	"github.com/jrsteele09/go-learnhub-client/gate"
	"github.com/jrsteele09/go-learnhub-client/internal/utils"
)

// TokenResponse is the body returned by /auth/login and /auth/refresh.
type TokenResponse struct {
	// AccessToken is the short-lived bearer credential.
	AccessToken *string `json:"access_token,omitempty"`

	// RefreshToken is exchanged at /auth/refresh for a new pair. It rotates
	// on every use.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type,omitempty"`
}

// Pair returns the tokens, or false when either one is missing.
func (t TokenResponse) Pair() (*gate.TokenPair, bool) {
	pair := &gate.TokenPair{
		AccessToken:  utils.Value(t.AccessToken),
		RefreshToken: utils.Value(t.RefreshToken),
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, false
	}
	return pair, true
}
