package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification slugs.
const (
	NotificationNewUser        = "new_user"
	NotificationEventSubscribe = "event_subscribe"
)

// Notification is a dashboard message for a user.
type Notification struct {
	ID        int64           `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Slug      string          `json:"slug"`
	MetaData  json.RawMessage `json:"meta_data,omitempty"`
	IsRead    bool            `json:"is_read"`
	CreatedAt time.Time       `json:"created_at"`
}
