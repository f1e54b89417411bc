package sessions

import "time"

// EventType identifies a session lifecycle transition.
type EventType int

const (
	EventCreated EventType = iota
	EventRestored
	EventWarning
	EventExpired
	EventRefreshed
	EventExtended
	EventEnded
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventRestored:
		return "restored"
	case EventWarning:
		return "warning"
	case EventExpired:
		return "expired"
	case EventRefreshed:
		return "refreshed"
	case EventExtended:
		return "extended"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is delivered to every registered handler, in transition order.
type Event struct {
	Type      EventType
	UserID    string
	At        time.Time
	ExpiresAt time.Time // zero for EventExpired and EventEnded
}

// EventHandler receives session events. Handlers run without the manager
// lock held and may call back into the manager.
type EventHandler func(Event)
