package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-learnhub-client/account"
	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
	"github.com/jrsteele09/go-learnhub-client/jobs"
	"github.com/jrsteele09/go-learnhub-client/learnhub"
	"github.com/jrsteele09/go-learnhub-client/progress"
)

func dispatch(ctx context.Context, app *learnhub.App, args []string) error {
	switch args[0] {
	case "login":
		if len(args) != 3 {
			return errors.New("usage: learnctl login <user_id> <password>")
		}
		if err := app.Account.Login(ctx, args[1], args[2]); err != nil {
			return err
		}
		fmt.Println("logged in as", args[1])
		return nil

	case "logout":
		return app.Account.Logout()

	case "status":
		return printStatus(ctx, app)

	case "me":
		me, err := app.Account.Me(ctx)
		if err != nil {
			return err
		}
		return printJSON(me)

	case "withdraw":
		if err := app.Account.Withdraw(ctx); err != nil {
			return err
		}
		fmt.Println("account withdrawn")
		return nil

	case "generate":
		if len(args) != 2 {
			return errors.New("usage: learnctl generate <user_id>")
		}
		job := app.Quizzes.GenerateForUser(ctx, args[1], nil)
		q, err := waitWithProgress(ctx, job.Handle, job.Wait)
		if err != nil {
			return err
		}
		return printJSON(q)

	case "generate-all":
		job := app.Quizzes.GenerateAll(ctx, nil)
		summary, err := waitWithProgress(ctx, job.Handle, job.Wait)
		if err != nil {
			return err
		}
		fmt.Println(summary.Summary())
		for _, f := range summary.Failed {
			fmt.Printf("  %s: %s\n", f.UserID, f.Reason)
		}
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// printStatus renews the access token when needed, then shows the session.
func printStatus(ctx context.Context, app *learnhub.App) error {
	token, err := app.Gate.TokenSource(ctx).Token()
	if apperrors.Is(err, apperrors.ErrNotAuthenticated) {
		fmt.Println("not logged in")
		return nil
	}
	if err != nil {
		return err
	}

	s := app.Store.Snapshot()
	now := time.Now()

	fmt.Printf("access token valid:  %t (until %s)\n", s.AccessValid(now), s.AccessExpiresAt.Format(time.RFC3339))
	fmt.Printf("refresh token valid: %t (until %s)\n", s.RefreshValid(now), s.RefreshExpiresAt.Format(time.RFC3339))
	claims, err := account.InspectAccessToken(token.AccessToken)
	if err != nil {
		fmt.Println("access token is not a readable JWT")
		return nil
	}
	fmt.Printf("subject %s, token version %d, server expiry %s\n", claims.Subject, claims.Version, claims.Expiry().Format(time.RFC3339))
	return nil
}

// waitWithProgress renders the job's progress bar on stderr until wait
// returns. Ctrl-C cancels the job.
func waitWithProgress[T any](ctx context.Context, h *jobs.Handle, wait func(context.Context) (T, error)) (T, error) {
	sub := h.Progress().Changed().Subscribe(func() {
		renderProgress(h.Progress().Snapshot())
	})
	defer sub.Unsubscribe()

	result, err := wait(ctx)
	fmt.Fprintln(os.Stderr)
	if apperrors.Is(err, context.Canceled) {
		h.Cancel()
	}
	return result, err
}

func renderProgress(s progress.Snapshot) {
	if !s.Visible {
		return
	}
	const width = 30
	filled := s.Value * width / 100
	fmt.Fprintf(os.Stderr, "\r[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), s.Value)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
