package models

import (
	"time"

	"github.com/google/uuid"
)

// ProfileType is the coarse account category stored on the profile row.
type ProfileType string

const (
	ProfileUser         ProfileType = "user"
	ProfileAdmin        ProfileType = "admin"
	ProfileOrganization ProfileType = "organization"
)

// Valid reports whether p is a known profile type.
func (p ProfileType) Valid() bool {
	switch p {
	case ProfileUser, ProfileAdmin, ProfileOrganization:
		return true
	}
	return false
}

// ParseProfileType returns the profile type for s, or ProfileUser when s is unknown.
func ParseProfileType(s string) ProfileType {
	if p := ProfileType(s); p.Valid() {
		return p
	}
	return ProfileUser
}

// Role is the secondary permission flag kept in user_roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole returns the role for s, or RoleUser when s is unknown.
func ParseRole(s string) Role {
	if r := Role(s); r.Valid() {
		return r
	}
	return RoleUser
}

// DefaultProfileName is used when neither metadata nor e-mail yield a name.
const DefaultProfileName = "Usuário"

// Account is the authentication identity. Profile data lives in User.
type Account struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// FullName returns the full_name entry of the account metadata, if any.
func (a *Account) FullName() string {
	if a == nil || a.Metadata == nil {
		return ""
	}
	name, _ := a.Metadata["full_name"].(string)
	return name
}

// User is the profile row of an account.
type User struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	BirthDate   *time.Time  `json:"birth_date,omitempty"`
	Phone       string      `json:"phone"`
	ProfileType ProfileType `json:"profile_type"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// UserUpdate holds optional profile fields; nil fields are left untouched.
type UserUpdate struct {
	Name        *string      `json:"name"`
	Email       *string      `json:"email"`
	BirthDate   *time.Time   `json:"birth_date"`
	Phone       *string      `json:"phone"`
	ProfileType *ProfileType `json:"profile_type"`
}

// UserWithRole is a profile joined with its role and, for organization users, its organization.
type UserWithRole struct {
	User
	Role         Role             `json:"role"`
	Organization *OrganizationRef `json:"organization,omitempty"`
}
