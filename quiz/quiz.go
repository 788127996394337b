// Package quiz starts admin quiz generation jobs and decodes their results.
package quiz

import "fmt"

const (
	GeneratePath    = "/quiz/admin/generate"
	GenerateAllPath = "/quiz/admin/generate-all"
	StatusPath      = "/quiz/admin/generate/status"
)

// Quiz is the result of generating a quiz for one user.
type Quiz struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Question     string   `json:"question"`
	Choices      []string `json:"choices"`
	Correct      string   `json:"correct"`
	Wrong        []string `json:"wrong"`
	Explanation  string   `json:"explanation"`
	Reference    string   `json:"reference"`
	Link         string   `json:"link"`
	SourceUserID string   `json:"source_user_id"`
}

type Failure struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// BatchSummary is the result of generating quizzes for every user.
type BatchSummary struct {
	Created int       `json:"created"`
	Failed  []Failure `json:"failed"`
}

func (b BatchSummary) Summary() string {
	return fmt.Sprintf("created %d, failed %d", b.Created, len(b.Failed))
}
