package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
)

var (
	ErrJobStartFailed     = apperrors.ErrJobStartFailed
	ErrJobPollFailed      = apperrors.ErrJobPollFailed
	ErrJobReportedFailure = apperrors.ErrJobReportedFailure
	ErrCancelled          = errors.New("job cancelled")
)

// Status is the server-side job status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusResponse mirrors the job record returned by the status endpoint. The
// client only ever reads it.
type StatusResponse struct {
	Status   Status          `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// State is the client-side lifecycle of one tracked job.
type State int

const (
	StateIdle State = iota
	StateStarting
	StatePolling
	StateResolved
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePolling:
		return "polling"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateFailed || s == StateCancelled
}

// Phase tells when a job failed.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhasePoll     Phase = "poll"
	PhaseReported Phase = "reported"
)

// Error is the terminal failure of a job. Message is fit for display.
type Error struct {
	Phase   Phase
	JobID   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the phase sentinel (ErrJobStartFailed, ...) and the
// underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.Phase.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (p Phase) sentinel() error {
	switch p {
	case PhaseStart:
		return ErrJobStartFailed
	case PhasePoll:
		return ErrJobPollFailed
	default:
		return ErrJobReportedFailure
	}
}

// Outcome is the terminal result of a resolved or failed job.
type Outcome struct {
	JobID  string
	State  State
	Result json.RawMessage // set when State is StateResolved
	Err    *Error          // set when State is StateFailed
}

// Decode unmarshals the job result into v.
func (o Outcome) Decode(v any) error {
	if o.State != StateResolved {
		return fmt.Errorf("job %s has no result: %s", o.JobID, o.State)
	}
	if len(o.Result) == 0 || string(o.Result) == "null" {
		return fmt.Errorf("job %s: %w: empty result", o.JobID, apperrors.ErrMalformedBody)
	}
	if err := json.Unmarshal(o.Result, v); err != nil {
		return fmt.Errorf("job %s: %w: %v", o.JobID, apperrors.ErrMalformedBody, err)
	}
	return nil
}

// Result decodes the outcome's payload as T.
func Result[T any](o Outcome) (T, error) {
	var v T
	err := o.Decode(&v)
	return v, err
}

// Typed is a Handle whose result decodes to T.
type Typed[T any] struct {
	*Handle
}

// Wait blocks for the job's outcome and decodes its result.
func (j Typed[T]) Wait(ctx context.Context) (T, error) {
	o, err := j.Handle.Wait(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Result[T](o)
}
