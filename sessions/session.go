package sessions

import (
	"time"
)

// Session is the single active authenticated session. ExpiresAt always equals
// LastActivity + Timeout after any mutation.
type Session struct {
	UserID       string        // Owner of the session
	Token        string        // Opaque random token, rotated by RefreshToken
	CreatedAt    time.Time     // Preserved across activity updates and token refreshes
	LastActivity time.Time     // Last recorded user activity
	ExpiresAt    time.Time     // LastActivity + Timeout
	Timeout      time.Duration // Inactivity timeout
	Active       bool          // Cleared when the session ends
}

// IsValid reports whether the session is active and not yet expired at now.
func (s Session) IsValid(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

// RemainingTime returns the time until expiry, zero once invalid.
func (s Session) RemainingTime(now time.Time) time.Duration {
	if !s.IsValid(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// NeedsRefresh reports whether the remaining time has dropped to threshold or below.
func (s Session) NeedsRefresh(now time.Time, threshold time.Duration) bool {
	return s.RemainingTime(now) <= threshold
}

func (s *Session) touch(now time.Time) {
	s.LastActivity = now
	s.ExpiresAt = now.Add(s.Timeout)
}

// State is the lifecycle state reported by Manager.State.
type State int

const (
	// NoSession means nothing has been created since start or the last logout
	NoSession State = iota
	// Active means a valid session exists outside the warning window
	Active
	// Warning means a valid session exists and expiry is imminent
	Warning
	// Expired means the last session ended by timeout or forced expiry
	Expired
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "NO_SESSION"
	case Active:
		return "ACTIVE"
	case Warning:
		return "WARNING"
	case Expired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}
