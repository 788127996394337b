package fakeapi

import (
	"sync"

	"github.com/google/uuid"
)

// JobStep is one status the fake reports for a job. Each poll consumes one
// step; the last step repeats.
type JobStep struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

type job struct {
	steps []JobStep
	polls int
}

type jobRepo struct {
	lock sync.Mutex
	jobs map[string]*job
}

func newJobRepo() *jobRepo {
	return &jobRepo{jobs: make(map[string]*job)}
}

func (r *jobRepo) create(steps []JobStep) string {
	id := uuid.New().String()
	r.lock.Lock()
	defer r.lock.Unlock()
	r.jobs[id] = &job{steps: steps}
	return id
}

func (r *jobRepo) next(id string) (JobStep, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return JobStep{}, false
	}
	step := j.steps[min(j.polls, len(j.steps)-1)]
	j.polls++
	return step, true
}
