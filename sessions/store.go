package sessions

import (
	"fmt"
	"slices"
	"time"

	"github.com/jrsteele09/go-learnhub-client/broadcast"
	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
	"github.com/jrsteele09/go-learnhub-client/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the only writer of the persisted session.
type Store interface {
	// Save writes a fresh token pair with newly computed expiries and emits
	// the session-changed signal.
	Save(accessToken, refreshToken string) error

	// Clear removes every session field and emits the signal. Idempotent.
	Clear() error

	// ClearIfRefreshToken clears only while refreshToken is still the stored
	// one, reporting whether it did.
	ClearIfRefreshToken(refreshToken string) (bool, error)

	IsAccessValid() bool
	IsRefreshValid() bool
	IsAuthenticated() bool

	// ValidAccessToken returns the access token only while it is access-valid.
	ValidAccessToken() (string, bool)
	// ValidRefreshToken returns the refresh token only while it is refresh-valid.
	ValidRefreshToken() (string, bool)

	// Snapshot returns the stored session as of now.
	Snapshot() Session

	// Subscribe registers fn for every session change, local or from another
	// view of the same storage medium.
	Subscribe(fn func()) *broadcast.Subscription
}

var _ Store = (*Manager)(nil)

// Manager implements Store over a storage.View.
type Manager struct {
	view          *storage.View
	signal        *broadcast.Signal
	sessionWindow time.Duration
	refreshWindow time.Duration
	nowFunc       func() time.Time
	logger        zerolog.Logger
	stopWatch     func()
}

type ManagerOption func(*Manager)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithRefreshWindow gives the refresh token its own lifetime instead of
// sharing the access token's expiry instant.
func WithRefreshWindow(window time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshWindow = window
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session store over view. Changes made to the session
// keys through any other view of the same medium are re-emitted on the
// store's signal.
func NewManager(view *storage.View, sessionWindow time.Duration, options ...ManagerOption) *Manager {
	m := &Manager{
		view:          view,
		signal:        broadcast.New(broadcast.AuthChange),
		sessionWindow: sessionWindow,
		nowFunc:       time.Now,
		logger:        log.Logger,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.refreshWindow <= 0 {
		m.refreshWindow = m.sessionWindow
	}

	m.stopWatch = view.Watch(func(c storage.Change) {
		if touchesSession(c.Keys) {
			m.signal.Emit()
		}
	})
	return m
}

func (m *Manager) Save(accessToken, refreshToken string) error {
	now := m.nowFunc()
	accessExpiry := now.Add(m.sessionWindow)
	refreshExpiry := now.Add(m.refreshWindow)

	err := m.view.Apply(storage.NewBatch().
		Set(AccessTokenKey, accessToken).
		Set(RefreshTokenKey, refreshToken).
		Set(AccessExpiresAtKey, formatMillis(accessExpiry)).
		Set(RefreshExpiresAtKey, formatMillis(refreshExpiry)))
	if err != nil {
		m.logger.Error().Err(err).Msg("session: save failed")
		return fmt.Errorf("[Manager.Save] %w", err)
	}

	m.logger.Debug().Time("access_expires_at", accessExpiry).Time("refresh_expires_at", refreshExpiry).Msg("session: saved")
	m.signal.Emit()
	return nil
}

func (m *Manager) Clear() error {
	if err := m.view.Apply(storage.NewBatch().Remove(Keys...)); err != nil {
		m.logger.Error().Err(err).Msg("session: clear failed")
		return fmt.Errorf("[Manager.Clear] %w", err)
	}
	m.logger.Debug().Msg("session: cleared")
	m.signal.Emit()
	return nil
}

func (m *Manager) ClearIfRefreshToken(refreshToken string) (bool, error) {
	err := m.view.Apply(storage.NewBatch().IfEquals(RefreshTokenKey, refreshToken).Remove(Keys...))
	if apperrors.Is(err, storage.ErrPreconditionFailed) {
		m.logger.Debug().Msg("session: replaced elsewhere, not clearing")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("[Manager.ClearIfRefreshToken] %w", err)
	}
	m.signal.Emit()
	return true, nil
}

func (m *Manager) IsAccessValid() bool {
	return m.Snapshot().AccessValid(m.nowFunc())
}

func (m *Manager) IsRefreshValid() bool {
	return m.Snapshot().RefreshValid(m.nowFunc())
}

func (m *Manager) IsAuthenticated() bool {
	return m.Snapshot().Authenticated(m.nowFunc())
}

func (m *Manager) ValidAccessToken() (string, bool) {
	s := m.Snapshot()
	if !s.AccessValid(m.nowFunc()) {
		return "", false
	}
	return s.AccessToken, true
}

func (m *Manager) ValidRefreshToken() (string, bool) {
	s := m.Snapshot()
	if !s.RefreshValid(m.nowFunc()) {
		return "", false
	}
	return s.RefreshToken, true
}

func (m *Manager) Snapshot() Session {
	return fromFields(m.view.GetMany(Keys...))
}

func (m *Manager) Subscribe(fn func()) *broadcast.Subscription {
	return m.signal.Subscribe(fn)
}

// Close stops re-emitting changes from other views.
func (m *Manager) Close() {
	if m.stopWatch != nil {
		m.stopWatch()
	}
}

func touchesSession(keys []string) bool {
	for _, k := range keys {
		if slices.Contains(Keys, k) {
			return true
		}
	}
	return false
}
