// Package jobs starts long-running server jobs and polls them to a terminal
// outcome while a progress.Simulator gives visual feedback.
package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-learnhub-client/api"
	"github.com/jrsteele09/go-learnhub-client/internal/config"
	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
	"github.com/jrsteele09/go-learnhub-client/progress"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultPollInterval = time.Second
	defaultPollTimeout  = 10 * time.Second
	defaultStartTimeout = 10 * time.Second

	defaultFailureMessage = "job failed"
	pollFailureMessage    = "failed to load job status"
	startFailureMessage   = "failed to start job"
	loginRequiredMessage  = "login required"
)

// Requester issues authorized requests; *api.Client implements it.
type Requester interface {
	NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error)
	Do(req *http.Request) (*http.Response, error)
}

// StartRequest describes the call that creates a job.
type StartRequest struct {
	Path   string        // Job start endpoint, e.g. /quiz/admin/generate
	Body   any           // Optional JSON body
	OnDone func(Outcome) // Called exactly once on resolution or failure, never on cancellation
}

// Tracker holds the endpoints and timing shared by every job of one kind.
type Tracker struct {
	client       Requester
	statusPath   string
	pollInterval time.Duration
	pollTimeout  time.Duration
	startTimeout time.Duration
	progressCfg  progress.Config
	logger       zerolog.Logger
}

type Option func(*Tracker)

func WithPollInterval(interval time.Duration) Option {
	return func(t *Tracker) {
		t.pollInterval = interval
	}
}

// WithPollTimeout bounds each status request.
func WithPollTimeout(timeout time.Duration) Option {
	return func(t *Tracker) {
		t.pollTimeout = timeout
	}
}

// WithStartTimeout bounds the start request.
func WithStartTimeout(timeout time.Duration) Option {
	return func(t *Tracker) {
		t.startTimeout = timeout
	}
}

// WithJobConfig applies every timing setting from cfg.
func WithJobConfig(cfg config.JobConfig) Option {
	return func(t *Tracker) {
		t.pollInterval = cfg.GetPollInterval()
		t.pollTimeout = cfg.GetPollTimeout()
		t.startTimeout = cfg.GetStartTimeout()
	}
}

func WithProgressConfig(cfg progress.Config) Option {
	return func(t *Tracker) {
		t.progressCfg = cfg
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker creates a tracker polling statusPath/{job_id}.
func NewTracker(client Requester, statusPath string, options ...Option) (*Tracker, error) {
	if client == nil {
		return nil, errors.New("[jobs.NewTracker] client is required")
	}
	if strings.TrimSpace(statusPath) == "" {
		return nil, errors.New("[jobs.NewTracker] status path is required")
	}

	t := &Tracker{
		client:       client,
		statusPath:   strings.TrimRight(statusPath, "/"),
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
		startTimeout: defaultStartTimeout,
		progressCfg:  progress.DefaultConfig(),
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// Start creates the job in the background and returns its handle at once.
// Cancelling ctx cancels the job's tracking, exactly like Handle.Cancel.
func (t *Tracker) Start(ctx context.Context, req StartRequest) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		tracker:  t,
		progress: progress.New(t.progressCfg),
		state:    StateStarting,
		onDone:   req.OnDone,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	h.lock.Lock()
	h.stopParentWatch = context.AfterFunc(ctx, h.Cancel)
	h.lock.Unlock()

	go h.run(runCtx, req)
	return h
}

func (t *Tracker) startJob(ctx context.Context, req StartRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.startTimeout)
	defer cancel()

	httpReq, err := t.client.NewRequest(ctx, http.MethodPost, req.Path, req.Body)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", err
	}

	var started struct {
		JobID string `json:"job_id"`
	}
	if err := api.DecodeJSON(resp, &started); err != nil {
		return "", err
	}
	if started.JobID == "" {
		return "", apperrors.Wrapf(apperrors.ErrMalformedBody, "missing job_id")
	}
	return started.JobID, nil
}

func (t *Tracker) fetchStatus(ctx context.Context, jobID string) (*StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.pollTimeout)
	defer cancel()

	httpReq, err := t.client.NewRequest(ctx, http.MethodGet, t.statusPath+"/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	var status StatusResponse
	if err := api.DecodeJSON(resp, &status); err != nil {
		return nil, err
	}
	switch status.Status {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return &status, nil
	default:
		return nil, apperrors.Wrapf(apperrors.ErrMalformedBody, "unknown job status %q", status.Status)
	}
}

// describe turns a transport error into a message fit for display.
func describe(err error, fallback string) string {
	if apperrors.Is(err, apperrors.ErrNotAuthenticated) {
		return loginRequiredMessage
	}
	var statusErr *api.StatusError
	if apperrors.As(err, &statusErr) && statusErr.Detail != "" {
		return statusErr.Detail
	}
	return fallback
}
