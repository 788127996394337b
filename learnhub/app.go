// Package learnhub wires the session store, gate, authorized client, account
// service and quiz generator into one client for a single storage view.
package learnhub

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-learnhub-client/account"
	"github.com/jrsteele09/go-learnhub-client/api"
	"github.com/jrsteele09/go-learnhub-client/gate"
	"github.com/jrsteele09/go-learnhub-client/internal/config"
	"github.com/jrsteele09/go-learnhub-client/jobs"
	"github.com/jrsteele09/go-learnhub-client/progress"
	"github.com/jrsteele09/go-learnhub-client/quiz"
	"github.com/jrsteele09/go-learnhub-client/sessions"
	"github.com/jrsteele09/go-learnhub-client/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App is one client context, the equivalent of a browser tab.
type App struct {
	Config  config.Config
	Store   *sessions.Manager
	Gate    *gate.Gate
	Client  *api.Client
	Account *account.Service
	Quizzes *quiz.Generator
}

type options struct {
	httpClient *http.Client
	logger     zerolog.Logger
	nowFunc    func() time.Time
}

type Option func(*options)

// WithHTTPClient sets the client used for every outbound call.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNowFunc sets the clock used for session expiry.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

func New(cfg config.Config, view *storage.View, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("[learnhub.New] config is required")
	}
	if view == nil {
		return nil, errors.New("[learnhub.New] storage view is required")
	}

	o := options{
		httpClient: &http.Client{},
		logger:     log.Logger,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	store := sessions.NewManager(view, cfg.GetSessionWindow(),
		sessions.WithRefreshWindow(cfg.GetRefreshWindow()),
		sessions.WithNowFunc(o.nowFunc),
		sessions.WithLogger(o.logger),
	)

	svc, err := account.New(cfg.GetAPIBaseURL(), store,
		account.WithHTTPClient(o.httpClient),
		account.WithLogger(o.logger),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("[learnhub.New] %w", err)
	}

	g, err := gate.New(store, svc,
		gate.WithRefreshTimeout(cfg.GetRefreshTimeout()),
		gate.WithLogger(o.logger),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("[learnhub.New] %w", err)
	}

	client := api.New(cfg.GetAPIBaseURL(), g, api.WithHTTPClient(o.httpClient))
	svc.Authorize(client)

	quizzes, err := quiz.NewGenerator(client,
		jobs.WithJobConfig(cfg),
		jobs.WithProgressConfig(progress.ConfigFrom(cfg)),
		jobs.WithLogger(o.logger),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("[learnhub.New] %w", err)
	}

	return &App{
		Config:  cfg,
		Store:   store,
		Gate:    g,
		Client:  client,
		Account: svc,
		Quizzes: quizzes,
	}, nil
}

// Close detaches the store from its storage view. Running jobs are not
// affected; cancel their handles separately.
func (a *App) Close() {
	a.Store.Close()
}
