package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-learnhub-client/progress"
)

// Handle tracks one job: Idle -> Starting -> Polling -> {Resolved, Failed},
// or Cancelled from any non-terminal state.
type Handle struct {
	tracker  *Tracker
	progress *progress.Simulator
	onDone   func(Outcome)

	lock    sync.Mutex
	state   State
	jobID   string
	outcome Outcome

	cancel          context.CancelFunc
	stopParentWatch func() bool
	done            chan struct{}
}

func (h *Handle) State() State {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.state
}

func (h *Handle) JobID() string {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.jobID
}

// Progress is the job's progress indicator.
func (h *Handle) Progress() *progress.Simulator {
	return h.progress
}

// Done is closed once the job is resolved, failed or cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the terminal outcome, if there is one.
func (h *Handle) Outcome() (Outcome, bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.state != StateResolved && h.state != StateFailed {
		return Outcome{}, false
	}
	return h.outcome, true
}

// Wait blocks until the job ends. It returns the outcome's *Error for failed
// jobs and ErrCancelled for cancelled ones.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-h.done:
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	switch h.state {
	case StateCancelled:
		return Outcome{}, ErrCancelled
	case StateFailed:
		return h.outcome, h.outcome.Err
	default:
		return h.outcome, nil
	}
}

// Cancel stops polling and the progress indicator without reporting an
// outcome. It is a no-op once the job has ended.
func (h *Handle) Cancel() {
	h.lock.Lock()
	if h.state.Terminal() {
		h.lock.Unlock()
		return
	}
	h.state = StateCancelled
	jobID := h.jobID
	stopParentWatch := h.stopParentWatch
	h.lock.Unlock()

	stopParentWatch()
	h.cancel()
	h.progress.Close()
	close(h.done)
	h.tracker.logger.Debug().Str("job_id", jobID).Msg("jobs: cancelled")
}

func (h *Handle) run(ctx context.Context, req StartRequest) {
	jobID, err := h.tracker.startJob(ctx, req)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		h.tracker.logger.Warn().Err(err).Str("path", req.Path).Msg("jobs: start failed")
		h.finish(Outcome{
			State: StateFailed,
			Err:   &Error{Phase: PhaseStart, Message: describe(err, startFailureMessage), Err: err},
		})
		return
	}

	h.lock.Lock()
	if h.state != StateStarting {
		h.lock.Unlock()
		return
	}
	h.jobID = jobID
	h.state = StatePolling
	h.lock.Unlock()

	h.tracker.logger.Debug().Str("job_id", jobID).Msg("jobs: started")
	h.progress.Start()
	h.poll(ctx, jobID)
}

func (h *Handle) poll(ctx context.Context, jobID string) {
	ticker := time.NewTicker(h.tracker.pollInterval)
	defer ticker.Stop()

	for {
		if h.pollOnce(ctx, jobID) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce fetches the status once and reports whether polling is over.
func (h *Handle) pollOnce(ctx context.Context, jobID string) bool {
	status, err := h.tracker.fetchStatus(ctx, jobID)
	if ctx.Err() != nil {
		// Cancelled while the request was in flight; its answer is stale.
		return true
	}
	if err != nil {
		h.tracker.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobs: poll failed")
		h.finish(Outcome{
			JobID: jobID,
			State: StateFailed,
			Err:   &Error{Phase: PhasePoll, JobID: jobID, Message: describe(err, pollFailureMessage), Err: err},
		})
		return true
	}

	h.tracker.logger.Debug().Str("job_id", jobID).Str("status", string(status.Status)).Int("progress", status.Progress).Msg("jobs: polled")
	h.progress.SetValue(status.Progress)

	switch status.Status {
	case StatusCompleted:
		h.finish(Outcome{JobID: jobID, State: StateResolved, Result: status.Result})
		return true
	case StatusFailed:
		message := status.Error
		if message == "" {
			message = defaultFailureMessage
		}
		h.finish(Outcome{
			JobID: jobID,
			State: StateFailed,
			Err:   &Error{Phase: PhaseReported, JobID: jobID, Message: message},
		})
		return true
	default:
		return false
	}
}

// finish records the terminal outcome once and notifies the owner.
func (h *Handle) finish(o Outcome) {
	h.lock.Lock()
	if h.state.Terminal() {
		h.lock.Unlock()
		return
	}
	started := h.state == StatePolling
	h.state = o.State
	h.outcome = o
	stopParentWatch := h.stopParentWatch
	h.lock.Unlock()

	stopParentWatch()
	h.cancel()
	if started {
		h.progress.Finish()
	} else {
		h.progress.Reset()
	}
	close(h.done)

	event := h.tracker.logger.Info().Str("job_id", o.JobID).Str("state", o.State.String())
	if o.Err != nil {
		event = event.Str("error", o.Err.Message)
	}
	event.Msg("jobs: finished")

	if h.onDone != nil {
		h.onDone(o)
	}
}
