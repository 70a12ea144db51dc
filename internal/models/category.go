package models

import "time"

// EventCategory groups events and carries a display color.
type EventCategory struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryRef is the short form embedded in events.
type CategoryRef struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}
