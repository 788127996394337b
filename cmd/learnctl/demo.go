package main

import (
	"context"
	"fmt"
	"net/http/httptest"

	"github.com/jrsteele09/go-learnhub-client/account"
	"github.com/jrsteele09/go-learnhub-client/internal/config"
	"github.com/jrsteele09/go-learnhub-client/internal/fakeapi"
	"github.com/jrsteele09/go-learnhub-client/learnhub"
	"github.com/jrsteele09/go-learnhub-client/storage"
	"github.com/rs/zerolog/log"
)

// demoConfig points the client at the in-process backend.
type demoConfig struct {
	config.Config
	baseURL string
}

func (d demoConfig) GetAPIBaseURL() string {
	return d.baseURL
}

// runDemo drives two "tabs" sharing one in-memory session through login,
// a batch generation job and logout against the fake backend.
func runDemo(ctx context.Context, c config.Config) error {
	backend := fakeapi.New()
	for _, u := range []struct{ id, password, role string }{
		{"root", "admin", account.RoleAdmin},
		{"alice", "x", account.RoleGeneral},
		{"bob", "y", account.RoleGeneral},
		{"carol", "z", account.RoleCoach},
	} {
		if err := backend.AddUser(u.id, u.password, u.role); err != nil {
			return err
		}
	}
	server := httptest.NewServer(backend)
	defer server.Close()
	log.Info().Str("url", server.URL).Strs("routes", backend.Routes()).Msg("demo backend running")

	cfg := demoConfig{Config: c, baseURL: server.URL}
	medium := storage.NewMemoryMedium()
	first, err := learnhub.New(cfg, medium.Open())
	if err != nil {
		return err
	}
	defer first.Close()
	second, err := learnhub.New(cfg, medium.Open())
	if err != nil {
		return err
	}
	defer second.Close()

	sub := second.Store.Subscribe(func() {
		log.Info().Bool("authenticated", second.Store.IsAuthenticated()).Msg("second tab saw a session change")
	})
	defer sub.Unsubscribe()

	if err := first.Account.Login(ctx, "root", "admin"); err != nil {
		return err
	}
	fmt.Println("admin status in second tab:", second.Account.AdminStatus(ctx))

	job := second.Quizzes.GenerateAll(ctx, nil)
	summary, err := waitWithProgress(ctx, job.Handle, job.Wait)
	if err != nil {
		return err
	}
	fmt.Println("batch:", summary.Summary())

	quizJob := first.Quizzes.GenerateForUser(ctx, "alice", nil)
	q, err := waitWithProgress(ctx, quizJob.Handle, quizJob.Wait)
	if err != nil {
		return err
	}
	fmt.Println("quiz:", q.Title)

	if err := first.Account.Logout(); err != nil {
		return err
	}
	_, ok := second.Gate.EnsureAccessToken(ctx)
	fmt.Println("second tab still has a token after logout:", ok)
	fmt.Printf("requests: login=%d refresh=%d status=%d\n",
		backend.Calls(fakeapi.RouteLogin), backend.Calls(fakeapi.RouteRefresh), backend.Calls(fakeapi.RouteJobStatus))
	return nil
}
