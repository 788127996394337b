// Package account covers the credential-level operations of the platform:
// login, refresh, logout, withdrawal and identity lookups.
package account

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-learnhub-client/api"
	"github.com/jrsteele09/go-learnhub-client/gate"
	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
	"github.com/jrsteele09/go-learnhub-client/sessions"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	LoginPath    = "/auth/login"
	RefreshPath  = "/auth/refresh"
	WithdrawPath = "/auth/withdraw"
	MePath       = "/auth/me"

	defaultTimeout = 10 * time.Second
)

var (
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	ErrAccountDeactivated = apperrors.ErrAccountDeactivated
	ErrRefreshFailed      = apperrors.ErrRefreshFailed
)

var _ gate.Refresher = (*Service)(nil)

// Service talks to the auth endpoints. Login and Refresh go out without a
// bearer token; every other call uses the authorized client.
type Service struct {
	baseURL    string
	store      sessions.Store
	authorized *api.Client
	http       *http.Client
	logger     zerolog.Logger
}

type Option func(*Service)

// WithHTTPClient sets the client used for the unauthenticated calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.http = client
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(baseURL string, store sessions.Store, options ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("[account.New] session store is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[account.New] base URL is required")
	}

	s := &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Authorize sets the client used for calls that need a session. It is set
// after construction because the client's gate depends on this service.
func (s *Service) Authorize(client *api.Client) {
	s.authorized = client
}

// Login exchanges credentials for a session and stores it.
func (s *Service) Login(ctx context.Context, userID, password string) error {
	var tokens TokenResponse
	err := s.postJSON(ctx, LoginPath, map[string]string{"user_id": userID, "password": password}, &tokens)

	var statusErr *api.StatusError
	if apperrors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			return withDetail(ErrInvalidCredentials, statusErr.Detail)
		case http.StatusForbidden:
			return withDetail(ErrAccountDeactivated, statusErr.Detail)
		}
	}
	if err != nil {
		return pkgerrors.Wrap(err, "[Service.Login]")
	}

	pair, ok := tokens.Pair()
	if !ok {
		return apperrors.Wrapf(apperrors.ErrMalformedBody, "[Service.Login] token pair incomplete")
	}
	if err := s.store.Save(pair.AccessToken, pair.RefreshToken); err != nil {
		return pkgerrors.Wrap(err, "[Service.Login] store.Save")
	}
	s.logger.Info().Str("user_id", userID).Msg("account: logged in")
	return nil
}

// Refresh exchanges a refresh token for a new pair. Any failure, including a
// non-success status or an incomplete pair, wraps ErrRefreshFailed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*gate.TokenPair, error) {
	var tokens TokenResponse
	if err := s.postJSON(ctx, RefreshPath, map[string]string{"refresh_token": refreshToken}, &tokens); err != nil {
		return nil, apperrors.Wrapf(ErrRefreshFailed, "%v", err)
	}
	pair, ok := tokens.Pair()
	if !ok {
		return nil, apperrors.Wrapf(ErrRefreshFailed, "token pair incomplete")
	}
	return pair, nil
}

// Logout forgets the local session. The server keeps no session state to
// revoke.
func (s *Service) Logout() error {
	if err := s.store.Clear(); err != nil {
		return pkgerrors.Wrap(err, "[Service.Logout]")
	}
	s.logger.Info().Msg("account: logged out")
	return nil
}

// Withdraw deactivates the account and clears the session.
func (s *Service) Withdraw(ctx context.Context) error {
	client, err := s.client()
	if err != nil {
		return err
	}
	resp, err := client.PostJSON(ctx, WithdrawPath, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "[Service.Withdraw]")
	}
	if err := api.DecodeJSON(resp, nil); err != nil {
		return pkgerrors.Wrap(err, "[Service.Withdraw]")
	}
	if err := s.store.Clear(); err != nil {
		return pkgerrors.Wrap(err, "[Service.Withdraw] store.Clear")
	}
	s.logger.Info().Msg("account: withdrawn")
	return nil
}

// Me returns the profile of the logged in user.
func (s *Service) Me(ctx context.Context) (*UserInfo, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}
	resp, err := client.Get(ctx, MePath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Service.Me]")
	}
	var user UserInfo
	if err := api.DecodeJSON(resp, &user); err != nil {
		return nil, pkgerrors.Wrap(err, "[Service.Me]")
	}
	return &user, nil
}

// AdminStatus reports AdminAllowed only for a user whose role is admin. Every
// failure, including a missing session, is AdminForbidden.
func (s *Service) AdminStatus(ctx context.Context) AdminStatus {
	user, err := s.Me(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("account: admin check failed")
		return AdminForbidden
	}
	if !user.IsAdmin() {
		return AdminForbidden
	}
	return AdminAllowed
}

func (s *Service) client() (*api.Client, error) {
	if s.authorized == nil {
		return nil, errors.New("[account.Service] authorized client is not set")
	}
	return s.authorized, nil
}

func (s *Service) postJSON(ctx context.Context, path string, body, out any) error {
	req, err := api.NewJSONRequest(ctx, http.MethodPost, s.baseURL+path, body)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	return api.DecodeJSON(resp, out)
}

// withDetail keeps the server's message in front of the sentinel.
func withDetail(sentinel error, detail string) error {
	if detail == "" {
		return sentinel
	}
	return apperrors.Wrapf(sentinel, "%s", detail)
}
