package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type quiz struct {
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

type batchFailure struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type batchSummary struct {
	Created int            `json:"created"`
	Failed  []batchFailure `json:"failed"`
}

func (s *Server) issuePair(w http.ResponseWriter, u user) {
	access, err := s.tokens.issue(u, tokenTypeAccess)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	refresh, err := s.tokens.issue(u, tokenTypeRefresh)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, ok := s.users.authenticate(req.UserID, req.Password, s.tokens.now())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "login failed")
		return
	}
	if !u.active {
		writeDetail(w, http.StatusForbidden, "account deactivated")
		return
	}
	s.issuePair(w, u)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	status, delay := s.refreshStatus, s.refreshDelay
	s.lock.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeDetail(w, status, "Invalid token")
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, ok := s.userFromToken(req.RefreshToken, tokenTypeRefresh)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if !u.active {
		writeDetail(w, http.StatusForbidden, "account deactivated")
		return
	}
	s.issuePair(w, u)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.users.deactivate(currentUser(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) rejectStart(w http.ResponseWriter) bool {
	s.lock.Lock()
	status := s.startStatus
	s.lock.Unlock()
	if status == 0 {
		return false
	}
	writeDetail(w, status, "job could not be started")
	return true
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.rejectStart(w) {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeDetail(w, http.StatusBadRequest, "user_id is required")
		return
	}
	target, ok := s.users.getByUserID(req.UserID)
	if !ok {
		writeDetail(w, http.StatusNotFound, "user not found")
		return
	}

	s.lock.Lock()
	steps := s.singleScript
	s.lock.Unlock()
	if len(steps) == 0 {
		steps = []JobStep{
			{Status: "pending", Progress: 0},
			{Status: "running", Progress: 40},
			{Status: "completed", Progress: 100},
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": s.jobs.create(withResult(steps, generatedQuiz(target)))})
}

func (s *Server) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	if s.rejectStart(w) {
		return
	}

	summary := batchSummary{Failed: []batchFailure{}}
	for _, u := range s.users.all() {
		if u.Role == "admin" {
			continue
		}
		if u.active {
			summary.Created++
		} else {
			summary.Failed = append(summary.Failed, batchFailure{UserID: u.UserID, Reason: "account deactivated"})
		}
	}

	s.lock.Lock()
	steps := s.allScript
	s.lock.Unlock()
	if len(steps) == 0 {
		steps = []JobStep{
			{Status: "pending", Progress: 0},
			{Status: "running", Progress: 50},
			{Status: "completed", Progress: 100},
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": s.jobs.create(withResult(steps, summary))})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	step, ok := s.jobs.next(r.PathValue("job_id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// withResult copies steps, filling result on completing steps that have none.
func withResult(steps []JobStep, result any) []JobStep {
	out := make([]JobStep, len(steps))
	for i, step := range steps {
		if step.Status == "completed" && step.Result == nil {
			step.Result = result
		}
		out[i] = step
	}
	return out
}

func generatedQuiz(u user) quiz {
	return quiz{
		ID:           u.ID,
		Title:        fmt.Sprintf("Review for %s", u.UserName),
		Question:     "Which keyword starts a goroutine?",
		Choices:      []string{"go", "defer", "chan", "select"},
		Correct:      "go",
		Wrong:        []string{"defer", "chan", "select"},
		Explanation:  "The go statement runs a function call in a new goroutine.",
		Reference:    "https://go.dev/ref/spec#Go_statements",
		Link:         "https://go.dev/ref/spec#Go_statements",
		SourceUserID: u.UserID,
	}
}
