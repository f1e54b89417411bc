package lockout

import "time"

// State is either Unlocked or Locked.
type State interface {
	isState()
}

// Unlocked means login attempts are accepted.
type Unlocked struct{}

// Locked means login attempts are refused until Until.
type Locked struct {
	Until time.Time
}

func (Unlocked) isState() {}
func (Locked) isState()   {}

// Status is a snapshot of the policy evaluated at a point in time.
type Status struct {
	State          State
	FailedAttempts int
	Remaining      time.Duration
}

// IsLocked reports whether Status holds a Locked state.
func (s Status) IsLocked() bool {
	_, ok := s.State.(Locked)
	return ok
}

// record is the persisted pair. until is zero when no window was ever set.
type record struct {
	failedAttempts int
	until          time.Time
}

func (r record) status(now time.Time) Status {
	if !r.until.IsZero() && r.until.After(now) {
		return Status{
			State:          Locked{Until: r.until},
			FailedAttempts: r.failedAttempts,
			Remaining:      r.until.Sub(now),
		}
	}
	return Status{State: Unlocked{}, FailedAttempts: r.failedAttempts}
}
