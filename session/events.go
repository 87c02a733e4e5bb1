package session

import "time"

// EventType identifies a store lifecycle event.
type EventType uint8

const (
	EventLogin EventType = iota + 1
	EventLogout
	EventUserUpdated
	// EventRefreshRequested fires once per Refresh caller, coalesced or not.
	EventRefreshRequested
	// EventRefreshStarted fires once per call to the Refresher.
	EventRefreshStarted
	EventRefreshed
	EventRefreshFailed
	EventStorageFailed
	EventRestored
)

var eventTypeNames = [...]string{
	EventLogin:            "login",
	EventLogout:           "logout",
	EventUserUpdated:      "user_updated",
	EventRefreshRequested: "refresh_requested",
	EventRefreshStarted:   "refresh_started",
	EventRefreshed:        "refresh_success",
	EventRefreshFailed:    "refresh_failure",
	EventStorageFailed:    "storage_failure",
	EventRestored:         "restored",
}

func (t EventType) String() string {
	if int(t) < len(eventTypeNames) && eventTypeNames[t] != "" {
		return eventTypeNames[t]
	}
	return "unknown"
}

// Event is reported to the hook installed with [WithEventHook]. Duration is set for
// EventRefreshed and EventRefreshFailed when a network call was made.
type Event struct {
	Type     EventType
	UserID   string
	Err      error
	Duration time.Duration
}
