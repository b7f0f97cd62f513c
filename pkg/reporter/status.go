package reporter

import (
	"sync"
	"time"
)

// State is the phase of the report lifecycle.
type State int

const (
	Idle State = iota
	Collecting
	Sending
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Collecting:
		return "Collecting"
	case Sending:
		return "Sending"
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// Terminal reports whether s reverts to Idle on its own.
func (s State) Terminal() bool { return s == Succeeded || s == Failed }

// Status is the user-visible report status. Message carries the success
// text or the failure reason; Err is the underlying error, if any.
type Status struct {
	State   State
	Message string
	Err     error
}

func (s Status) String() string {
	if s.Message == "" {
		return s.State.String()
	}
	return s.State.String() + ": " + s.Message
}

// DefaultResetDelay is how long a terminal status stays visible.
const DefaultResetDelay = 3 * time.Second

// Tracker owns the current Status. Every Begin starts a new cycle and
// cancels any pending reversion; Finish applies only to the current cycle.
type Tracker struct {
	mu         sync.Mutex
	status     Status
	cycle      uint64
	timer      *time.Timer
	resetDelay time.Duration
	onChange   func(Status)
}

// NewTracker returns an Idle tracker. onChange, if set, sees every transition.
func NewTracker(resetDelay time.Duration, onChange func(Status)) *Tracker {
	if resetDelay <= 0 {
		resetDelay = DefaultResetDelay
	}
	return &Tracker{resetDelay: resetDelay, onChange: onChange}
}

// Status returns the current status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Begin enters a non-terminal state and returns the new cycle id.
func (t *Tracker) Begin(state State, msg string) uint64 {
	t.mu.Lock()
	t.cancelResetLocked()
	t.cycle++
	id := t.cycle
	st := Status{State: state, Message: msg}
	t.status = st
	t.mu.Unlock()
	t.notify(st)
	return id
}

// Finish moves cycle to a terminal status and schedules the return to Idle.
// It reports false when a newer cycle has superseded this one.
func (t *Tracker) Finish(cycle uint64, st Status) bool {
	t.mu.Lock()
	if cycle != t.cycle {
		t.mu.Unlock()
		return false
	}
	t.status = st
	if st.State.Terminal() {
		t.scheduleResetLocked()
	}
	t.mu.Unlock()
	t.notify(st)
	return true
}

// Set starts a new cycle directly in st.
func (t *Tracker) Set(st Status) {
	t.mu.Lock()
	t.cancelResetLocked()
	t.cycle++
	t.status = st
	if st.State.Terminal() {
		t.scheduleResetLocked()
	}
	t.mu.Unlock()
	t.notify(st)
}

// Stop cancels any pending reversion.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.cancelResetLocked()
	t.mu.Unlock()
}

func (t *Tracker) scheduleResetLocked() {
	t.cancelResetLocked()
	cycle := t.cycle
	t.timer = time.AfterFunc(t.resetDelay, func() {
		t.mu.Lock()
		if cycle != t.cycle || !t.status.State.Terminal() {
			t.mu.Unlock()
			return
		}
		t.status = Status{State: Idle}
		t.timer = nil
		t.mu.Unlock()
		t.notify(Status{State: Idle})
	})
}

func (t *Tracker) cancelResetLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Tracker) notify(st Status) {
	if t.onChange != nil {
		t.onChange(st)
	}
}
