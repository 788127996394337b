package gate

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource binds the gate to ctx as an oauth2.TokenSource. Token returns
// ErrNotAuthenticated when no session is obtainable.
func (g *Gate) TokenSource(ctx context.Context) oauth2.TokenSource {
	return contextSource{ctx: ctx, gate: g}
}

type contextSource struct {
	ctx  context.Context
	gate *Gate
}

func (s contextSource) Token() (*oauth2.Token, error) {
	token, ok := s.gate.EnsureAccessToken(s.ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	session := s.gate.store.Snapshot()
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      session.AccessExpiresAt,
	}, nil
}
