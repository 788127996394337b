package quiz

import (
	"context"

	"github.com/jrsteele09/go-learnhub-client/jobs"
)

// Generator runs both generation job kinds through one tracker.
type Generator struct {
	tracker *jobs.Tracker
}

func NewGenerator(client jobs.Requester, options ...jobs.Option) (*Generator, error) {
	tracker, err := jobs.NewTracker(client, StatusPath, options...)
	if err != nil {
		return nil, err
	}
	return &Generator{tracker: tracker}, nil
}

// GenerateForUser starts a quiz generation job for userID. onDone, when not
// nil, receives the job outcome exactly once unless the job is cancelled.
func (g *Generator) GenerateForUser(ctx context.Context, userID string, onDone func(jobs.Outcome)) jobs.Typed[Quiz] {
	h := g.tracker.Start(ctx, jobs.StartRequest{
		Path:   GeneratePath,
		Body:   map[string]string{"user_id": userID},
		OnDone: onDone,
	})
	return jobs.Typed[Quiz]{Handle: h}
}

// GenerateAll starts a job generating quizzes for every user.
func (g *Generator) GenerateAll(ctx context.Context, onDone func(jobs.Outcome)) jobs.Typed[BatchSummary] {
	h := g.tracker.Start(ctx, jobs.StartRequest{
		Path:   GenerateAllPath,
		OnDone: onDone,
	})
	return jobs.Typed[BatchSummary]{Handle: h}
}
