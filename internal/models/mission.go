package models

import (
	"time"

	"github.com/google/uuid"
)

// MissionStatus is the state of a user's participation in an event.
type MissionStatus string

const (
	MissionPending   MissionStatus = "pending"
	MissionAccepted  MissionStatus = "accepted"
	MissionCompleted MissionStatus = "completed"
	MissionCancelled MissionStatus = "cancelled"
)

// MissionStatuses lists every status in display order.
var MissionStatuses = []MissionStatus{MissionPending, MissionAccepted, MissionCompleted, MissionCancelled}

// Valid reports whether s is a known status. Any status may follow any other.
func (s MissionStatus) Valid() bool {
	for _, v := range MissionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// UserEvent is a mission acceptance row (users_events).
type UserEvent struct {
	ID        int64         `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	EventID   int64         `json:"event_id"`
	Status    MissionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Event     *Event        `json:"event,omitempty"`
}

// Participant is a user_event joined with the participating user.
type Participant struct {
	ID        int64         `json:"id"`
	EventID   int64         `json:"event_id"`
	Status    MissionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	User      User          `json:"user"`
}

// MissionStats counts a user's missions by status.
type MissionStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}
