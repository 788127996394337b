package api_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-learnhub-client/api"
	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
}

func (s *staticTokens) EnsureAccessToken(context.Context) (string, bool) {
	return s.token, s.token != ""
}

type testFixture struct {
	hits   atomic.Int32
	auth   atomic.Value
	server *httptest.Server
	tokens *staticTokens
	client *api.Client
}

func setupTestFixture(t *testing.T, handler http.HandlerFunc) *testFixture {
	t.Helper()

	f := &testFixture{tokens: &staticTokens{token: "access-1"}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.auth.Store(r.Header.Get("Authorization"))
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	f.client = api.New(f.server.URL+"/", f.tokens)
	return f
}

func TestDo_AttachesBearerToken(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "raw body")
	})

	resp, err := f.client.Get(context.Background(), "/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "Bearer access-1", f.auth.Load())
	require.Equal(t, http.StatusTeapot, resp.StatusCode, "status codes are passed through untouched")
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "raw body", string(body))
}

func TestDo_NoSessionFailsBeforeNetwork(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.tokens.token = ""

	resp, err := f.client.PostJSON(context.Background(), "/quiz/admin/generate", map[string]string{"user_id": "bob"})

	require.Nil(t, resp)
	require.ErrorIs(t, err, api.ErrNotAuthenticated)
	require.Zero(t, f.hits.Load())
}

func TestDecodeJSON(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			_, _ = io.WriteString(w, `{"job_id":"j-1"}`)
		case "/denied":
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"detail":"admin only"}`)
		default:
			_, _ = io.WriteString(w, `not json`)
		}
	})

	resp, err := f.client.PostJSON(context.Background(), "ok", struct{}{})
	require.NoError(t, err)
	var started struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, api.DecodeJSON(resp, &started))
	require.Equal(t, "j-1", started.JobID)

	resp, err = f.client.Get(context.Background(), "denied")
	require.NoError(t, err)
	err = api.DecodeJSON(resp, &started)
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	require.Equal(t, "admin only", statusErr.Detail)
	require.ErrorIs(t, err, apperrors.ErrUnexpectedStatus)

	resp, err = f.client.Get(context.Background(), "garbage")
	require.NoError(t, err)
	require.ErrorIs(t, api.DecodeJSON(resp, &started), apperrors.ErrMalformedBody)
}

func TestURL(t *testing.T) {
	c := api.New("https://api.example.com/", &staticTokens{})
	require.Equal(t, "https://api.example.com/auth/me", c.URL("/auth/me"))
	require.Equal(t, "https://api.example.com/auth/me", c.URL("auth/me"))
}
