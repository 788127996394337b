// Package gate is the single choke point that hands out a currently valid
// access token, renewing it with the stored refresh token when needed.
package gate

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
	"github.com/jrsteele09/go-learnhub-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotAuthenticated = apperrors.ErrNotAuthenticated
	ErrRefreshFailed    = apperrors.ErrRefreshFailed
)

const (
	refreshFlightKey      = "refresh"
	defaultRefreshTimeout = 10 * time.Second
)

// TokenPair is a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for a new pair. Any error, including a
// non-success response, counts as a failed refresh.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

type Gate struct {
	store          sessions.Store
	refresher      Refresher
	refreshTimeout time.Duration
	flight         singleflight.Group
	logger         zerolog.Logger
}

type Option func(*Gate)

// WithRefreshTimeout bounds each renewal request.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(g *Gate) {
		g.refreshTimeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func New(store sessions.Store, refresher Refresher, options ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("[gate.New] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[gate.New] refresher is required")
	}

	g := &Gate{
		store:          store,
		refresher:      refresher,
		refreshTimeout: defaultRefreshTimeout,
		logger:         log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// EnsureAccessToken returns a currently valid access token, or false when no
// usable session exists. A missing or expired session is the normal case and
// is never reported as an error.
//
// At most one renewal is in flight at a time; concurrent callers wait for and
// share its outcome. A failed renewal is not retried within the call.
func (g *Gate) EnsureAccessToken(ctx context.Context) (string, bool) {
	if token, ok := g.store.ValidAccessToken(); ok {
		return token, true
	}

	result := g.flight.DoChan(refreshFlightKey, func() (interface{}, error) {
		return g.renew()
	})

	select {
	case <-ctx.Done():
		return "", false
	case res := <-result:
		if res.Err != nil {
			return "", false
		}
		return res.Val.(string), true
	}
}

// renew runs inside the single flight, detached from any one caller's
// context so an impatient caller cannot abort the shared attempt.
func (g *Gate) renew() (string, error) {
	// An earlier flight may have renewed the session already.
	if token, ok := g.store.ValidAccessToken(); ok {
		return token, nil
	}

	refreshToken, ok := g.store.ValidRefreshToken()
	if !ok {
		if err := g.store.Clear(); err != nil {
			g.logger.Error().Err(err).Msg("gate: failed to clear expired session")
		}
		return "", ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.refreshTimeout)
	defer cancel()

	pair, err := g.refresher.Refresh(ctx, refreshToken)
	if err == nil && (pair == nil || pair.AccessToken == "" || pair.RefreshToken == "") {
		err = errors.Wrap(apperrors.ErrMalformedBody, "empty token pair")
	}
	if err != nil {
		g.logger.Warn().Err(err).Msg("gate: refresh failed, clearing session")
		return g.abandon(refreshToken, err)
	}

	if err := g.store.Save(pair.AccessToken, pair.RefreshToken); err != nil {
		// The server has rotated the pair; the stored refresh token is spent.
		g.logger.Error().Err(err).Msg("gate: failed to store renewed session, clearing session")
		if _, clearErr := g.store.ClearIfRefreshToken(refreshToken); clearErr != nil {
			g.logger.Error().Err(clearErr).Msg("gate: failed to clear session")
		}
		return "", errors.Wrap(ErrRefreshFailed, "[Gate.renew] store.Save: "+err.Error())
	}
	g.logger.Debug().Msg("gate: session renewed")
	return pair.AccessToken, nil
}

// abandon clears the session after a failed refresh, unless another context
// already replaced the refresh token, in which case its session is used.
func (g *Gate) abandon(refreshToken string, cause error) (string, error) {
	cleared, err := g.store.ClearIfRefreshToken(refreshToken)
	if err != nil {
		g.logger.Error().Err(err).Msg("gate: failed to clear session")
	}
	if !cleared {
		if token, ok := g.store.ValidAccessToken(); ok {
			return token, nil
		}
	}
	return "", errors.Wrap(ErrRefreshFailed, cause.Error())
}
