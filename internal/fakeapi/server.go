// Package fakeapi is an in-process stand-in for the platform's auth and quiz
// endpoints, used by tests and the learnctl demo.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	RouteLogin       = "POST /auth/login"
	RouteRefresh     = "POST /auth/refresh"
	RouteWithdraw    = "POST /auth/withdraw"
	RouteMe          = "GET /auth/me"
	RouteGenerate    = "POST /quiz/admin/generate"
	RouteGenerateAll = "POST /quiz/admin/generate-all"
	RouteJobStatus   = "GET /quiz/admin/generate/status/{job_id}"
)

type Server struct {
	mux    *http.ServeMux
	routes []string
	users  *userRepo
	jobs   *jobRepo
	tokens *issuer
	logger zerolog.Logger

	lock          sync.Mutex
	calls         map[string]int
	refreshStatus int
	refreshDelay  time.Duration
	startStatus   int
	singleScript  []JobStep
	allScript     []JobStep
}

type Option func(*Server)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.tokens.now = now
	}
}

// WithTokenTTL sets the lifetime of issued access and refresh tokens.
func WithTokenTTL(access, refresh time.Duration) Option {
	return func(s *Server) {
		s.tokens.accessTTL = access
		s.tokens.refreshTTL = refresh
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(options ...Option) *Server {
	s := &Server{
		mux:   http.NewServeMux(),
		users: newUserRepo(),
		jobs:  newJobRepo(),
		tokens: &issuer{
			secret:     []byte("fakeapi-secret"),
			accessTTL:  30 * time.Minute,
			refreshTTL: 7 * 24 * time.Hour,
			now:        time.Now,
		},
		logger: log.Logger,
		calls:  make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}
	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RegisterRouteFunc registers handler for pattern and counts its calls.
func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		s.calls[pattern]++
		s.lock.Unlock()
		handler(w, r)
	})
}

func (s *Server) initRoutes() {
	public := []func(http.HandlerFunc) http.HandlerFunc{s.loggingMiddleware, s.recoverMiddleware}
	authed := slices.Concat(public, []func(http.HandlerFunc) http.HandlerFunc{s.requireAuth})
	admin := slices.Concat(authed, []func(http.HandlerFunc) http.HandlerFunc{s.requireAdmin})

	s.RegisterRouteFunc(RouteLogin, chainMiddleware(s.handleLogin, public...))
	s.RegisterRouteFunc(RouteRefresh, chainMiddleware(s.handleRefresh, public...))
	s.RegisterRouteFunc(RouteWithdraw, chainMiddleware(s.handleWithdraw, authed...))
	s.RegisterRouteFunc(RouteMe, chainMiddleware(s.handleMe, authed...))
	s.RegisterRouteFunc(RouteGenerate, chainMiddleware(s.handleGenerate, admin...))
	s.RegisterRouteFunc(RouteGenerateAll, chainMiddleware(s.handleGenerateAll, admin...))
	s.RegisterRouteFunc(RouteJobStatus, chainMiddleware(s.handleJobStatus, admin...))
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// AddUser registers an active account.
func (s *Server) AddUser(userID, password, role string) error {
	_, err := s.users.add(userID, password, role, s.tokens.now())
	return err
}

// Calls returns how many requests hit the route pattern.
func (s *Server) Calls(route string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls[route]
}

// FailRefresh makes /auth/refresh answer with status; 0 restores normal
// behaviour.
func (s *Server) FailRefresh(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshStatus = status
}

// SetRefreshDelay holds every refresh response for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshDelay = d
}

// FailJobStart makes both job start endpoints answer with status; 0 restores
// normal behaviour.
func (s *Server) FailJobStart(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.startStatus = status
}

// ScriptSingleJob replaces the statuses reported by single-user generation
// jobs. A nil result on the completing step is filled with a generated quiz.
func (s *Server) ScriptSingleJob(steps ...JobStep) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.singleScript = steps
}

// ScriptBatchJob replaces the statuses reported by generate-all jobs.
func (s *Server) ScriptBatchJob(steps ...JobStep) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.allScript = steps
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
