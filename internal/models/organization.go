package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a partner that publishes events.
type Organization struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Whatsapp     string     `json:"whatsapp"`
	Location     string     `json:"location"`
	LocationLink string     `json:"location_link"`
	Slogan       string     `json:"slogan"`
	Website      string     `json:"website"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// OrganizationRef is the short form embedded in other payloads.
type OrganizationRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OrganizationInput is the writable part of an organization.
type OrganizationInput struct {
	Name         string `json:"name"`
	Whatsapp     string `json:"whatsapp"`
	Location     string `json:"location"`
	LocationLink string `json:"location_link"`
	Slogan       string `json:"slogan"`
	Website      string `json:"website"`
}

// OrganizationUpdate holds optional organization fields for partial updates.
type OrganizationUpdate struct {
	Name         *string `json:"name"`
	Whatsapp     *string `json:"whatsapp"`
	Location     *string `json:"location"`
	LocationLink *string `json:"location_link"`
	Slogan       *string `json:"slogan"`
	Website      *string `json:"website"`
}

// Membership roles in organization_members.
const (
	MemberRoleOwner  = "owner"
	MemberRoleMember = "member"
)

// OrganizationMember links a user to an organization.
type OrganizationMember struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID int64     `json:"organization_id"`
	Role           string    `json:"role"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfileType    string    `json:"profile_type"`
	IsMain         bool      `json:"is_main"`
	CreatedAt      time.Time `json:"created_at"`
}
