package api

import (
	"context"
	"net/http"

	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
	"golang.org/x/oauth2"
)

var ErrNotAuthenticated = apperrors.ErrNotAuthenticated

// TokenProvider supplies a currently valid access token, or false when the
// user must log in again. *gate.Gate implements it.
type TokenProvider interface {
	EnsureAccessToken(ctx context.Context) (string, bool)
}

// Transport attaches the bearer credential to every request. When no token
// is obtainable it fails with ErrNotAuthenticated without touching the
// network.
type Transport struct {
	Tokens TokenProvider
	Base   http.RoundTripper
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := t.Tokens.EnsureAccessToken(req.Context())
	if !ok {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, ErrNotAuthenticated
	}

	authed := req.Clone(req.Context())
	(&oauth2.Token{AccessToken: token}).SetAuthHeader(authed)
	return t.base().RoundTrip(authed)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
