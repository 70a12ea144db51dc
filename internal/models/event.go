package models

import "time"

// Event is a mission that users can accept.
type Event struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Image           *string          `json:"image"`
	Description     *string          `json:"description"`
	Location        *string          `json:"location"`
	Instructions    *string          `json:"instructions"`
	OrganizationID  *int64           `json:"organization_id"`
	EventCategoryID *int64           `json:"event_category_id"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Organization    *OrganizationRef `json:"organization,omitempty"`
	Category        *CategoryRef     `json:"category,omitempty"`
}

// EventInput is the body of an event create.
type EventInput struct {
	Title           string  `json:"title" binding:"required"`
	Image           *string `json:"image"`
	Description     *string `json:"description"`
	Location        *string `json:"location"`
	Instructions    *string `json:"instructions"`
	OrganizationID  *int64  `json:"organization_id"`
	EventCategoryID *int64  `json:"event_category_id"`
}

// EventUpdate holds optional event fields for partial updates.
type EventUpdate struct {
	Title           *string `json:"title"`
	Image           *string `json:"image"`
	Description     *string `json:"description"`
	Location        *string `json:"location"`
	Instructions    *string `json:"instructions"`
	OrganizationID  *int64  `json:"organization_id"`
	EventCategoryID *int64  `json:"event_category_id"`
}
