package fakeapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// chainMiddleware wraps route so that mw[0] runs first.
func chainMiddleware(route http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chained := route
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("fakeapi: request")
		next(w, r)
	}
}

func (s *Server) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("fakeapi: handler panicked")
				writeDetail(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next(w, r)
	}
}

type contextKey string

const contextKeyUser contextKey = "user"

// requireAuth validates the bearer access token and its token version.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeDetail(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		u, ok := s.userFromToken(parts[1], tokenTypeAccess)
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), contextKeyUser, u)))
	}
}

// requireAdmin must run after requireAuth.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r).Role != "admin" {
			writeDetail(w, http.StatusForbidden, "admin permission required")
			return
		}
		next(w, r)
	}
}

func (s *Server) userFromToken(token, tokenType string) (user, bool) {
	claims, err := s.tokens.parse(token, tokenType)
	if err != nil {
		return user{}, false
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return user{}, false
	}
	u, ok := s.users.get(id)
	if !ok || u.tokenVersion != claims.Version {
		return user{}, false
	}
	return u, true
}

func currentUser(r *http.Request) user {
	u, _ := r.Context().Value(contextKeyUser).(user)
	return u
}
