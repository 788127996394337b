package account

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
)

// TokenClaims are the claims the platform puts in its tokens.
type TokenClaims struct {
	Version int    `json:"ver"`
	Type    string `json:"type"`
	jwt.RegisteredClaims
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *TokenClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// InspectAccessToken decodes a token's claims WITHOUT verifying its
// signature. The result is for display and diagnostics only; the server
// remains the authority on validity.
func InspectAccessToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedBody, "[account.InspectAccessToken] %v", err)
	}
	return claims, nil
}
