// Package progress estimates progress for operations whose real percentage
// is unknown until they finish.
//
// A Simulator moves through a small state machine:
//
//	idle -> ramping -> pinned -> finished -> idle
//
// Start ramps the value on a timer but always keeps it below the ceiling,
// SetValue pins a real figure, and Finish shows 100% briefly before hiding.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-learnhub-client/broadcast"
	"github.com/jrsteele09/go-learnhub-client/internal/config"
	"github.com/jrsteele09/go-learnhub-client/internal/utils"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRamping
	PhasePinned
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseRamping:
		return "ramping"
	case PhasePinned:
		return "pinned"
	case PhaseFinished:
		return "finished"
	default:
		return "idle"
	}
}

type Config struct {
	Step        int           // Added to the value on every tick
	Interval    time.Duration // Tick interval while ramping
	Ceiling     int           // The ramp stays strictly below this value
	FinishDelay time.Duration // How long 100% stays visible after Finish
}

func DefaultConfig() Config {
	return Config{
		Step:        6,
		Interval:    250 * time.Millisecond,
		Ceiling:     90,
		FinishDelay: 500 * time.Millisecond,
	}
}

func ConfigFrom(c config.ProgressConfig) Config {
	return Config{
		Step:        c.GetProgressStep(),
		Interval:    c.GetProgressInterval(),
		Ceiling:     c.GetProgressCeiling(),
		FinishDelay: c.GetProgressFinishDelay(),
	}
}

func (c Config) normalised() Config {
	d := DefaultConfig()
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Ceiling <= 1 || c.Ceiling >= 100 {
		c.Ceiling = d.Ceiling
	}
	if c.FinishDelay < 0 {
		c.FinishDelay = 0
	}
	return c
}

type Snapshot struct {
	Value   int
	Visible bool
	Phase   Phase
}

type Simulator struct {
	cfg     Config
	changed *broadcast.Signal

	lock        sync.Mutex
	value       int
	visible     bool
	phase       Phase
	gen         uint64 // bumped by every operation; stale timers compare against it
	stopRamp    context.CancelFunc
	finishTimer *time.Timer
	closed      bool
}

func New(cfg Config) *Simulator {
	return &Simulator{
		cfg:     cfg.normalised(),
		changed: broadcast.New("progress"),
	}
}

// Start resets to a visible 0% and begins ramping. Any previous timer is
// cancelled first.
func (s *Simulator) Start() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.stopTimersLocked()
	s.value, s.visible, s.phase = 0, true, PhaseRamping

	ctx, cancel := context.WithCancel(context.Background())
	s.stopRamp = cancel
	gen := s.gen
	s.lock.Unlock()

	go s.ramp(ctx, gen)
	s.changed.Emit()
}

// SetValue stops the ramp and pins the value (clamped to 0-100).
func (s *Simulator) SetValue(v int) {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.stopTimersLocked()
	s.value, s.visible, s.phase = utils.Clamp(v, 0, 100), true, PhasePinned
	s.lock.Unlock()

	s.changed.Emit()
}

// Finish shows 100% and hides the indicator after the finish delay.
func (s *Simulator) Finish() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.stopTimersLocked()
	s.value, s.phase = 100, PhaseFinished
	gen := s.gen
	s.finishTimer = time.AfterFunc(s.cfg.FinishDelay, func() { s.hide(gen) })
	s.lock.Unlock()

	s.changed.Emit()
}

// Reset stops all timers and hides the indicator immediately.
func (s *Simulator) Reset() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.stopTimersLocked()
	s.value, s.visible, s.phase = 0, false, PhaseIdle
	s.lock.Unlock()

	s.changed.Emit()
}

// Close cancels every timer. Later calls are ignored and no further change
// notifications are sent.
func (s *Simulator) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	s.stopTimersLocked()
	s.closed = true
}

func (s *Simulator) Snapshot() Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()
	return Snapshot{Value: s.value, Visible: s.visible, Phase: s.phase}
}

// Changed is emitted after every state change; observers read Snapshot.
func (s *Simulator) Changed() *broadcast.Signal {
	return s.changed
}

func (s *Simulator) ramp(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.advance(gen) {
				return
			}
		}
	}
}

// advance applies one tick and reports whether ramping should continue.
func (s *Simulator) advance(gen uint64) bool {
	s.lock.Lock()
	if s.gen != gen || s.phase != PhaseRamping {
		s.lock.Unlock()
		return false
	}
	plateau := s.cfg.Ceiling - 1
	s.value = min(s.value+s.cfg.Step, plateau)
	more := s.value < plateau
	s.lock.Unlock()

	s.changed.Emit()
	return more
}

func (s *Simulator) hide(gen uint64) {
	s.lock.Lock()
	if s.gen != gen || s.closed {
		s.lock.Unlock()
		return
	}
	s.value, s.visible, s.phase = 0, false, PhaseIdle
	s.finishTimer = nil
	s.lock.Unlock()

	s.changed.Emit()
}

// stopTimersLocked must be called with the lock held.
func (s *Simulator) stopTimersLocked() {
	s.gen++
	if s.stopRamp != nil {
		s.stopRamp()
		s.stopRamp = nil
	}
	if s.finishTimer != nil {
		s.finishTimer.Stop()
		s.finishTimer = nil
	}
}
