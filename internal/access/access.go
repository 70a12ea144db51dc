package access

import (
	"github.com/google/uuid"

	"github.com/missoes/backend/internal/models"
)

// Access is the resolved authorization context of one caller.
type Access struct {
	UserID         uuid.UUID          `json:"user_id"`
	ProfileType    models.ProfileType `json:"profile_type"`
	Role           models.Role        `json:"role"`
	Level          Level              `json:"level"`
	OrganizationID *int64             `json:"organization_id,omitempty"`
}

// Anonymous is the context of a caller without a session.
func Anonymous() Access {
	return Access{Level: LevelUnauthenticated}
}

// Authenticated reports whether the caller has a session.
func (a Access) Authenticated() bool {
	return a.Level > LevelUnauthenticated && a.UserID != uuid.Nil
}

// CanAccess reports whether the caller meets the required tier.
func (a Access) CanAccess(required Level) bool {
	return a.Level.CanAccess(required)
}

// IsSuperAdmin reports a profile_type admin.
func (a Access) IsSuperAdmin() bool { return a.Level == LevelAdmin }

// IsOrganization reports an organization admin.
func (a Access) IsOrganization() bool { return a.Level == LevelOrganization }

// IsAdmin reports whether the caller may open the back office.
func (a Access) IsAdmin() bool { return a.IsSuperAdmin() || a.IsOrganization() }

// BelongsTo reports whether the caller is bound to organization orgID.
func (a Access) BelongsTo(orgID int64) bool {
	return a.OrganizationID != nil && *a.OrganizationID == orgID
}

// CanCreateEvent reports whether the caller may create events.
func CanCreateEvent(a Access) bool { return a.IsAdmin() }

// CanAccessAdmin reports whether the caller may open the back office.
func CanAccessAdmin(a Access) bool { return a.IsAdmin() }

// IsFullAdmin reports whether the caller is a super admin.
func IsFullAdmin(a Access) bool { return a.IsSuperAdmin() }

// CanManageEvent reports whether the caller may edit or delete an event owned by eventOrgID.
// Events without an organization are managed by super admins only.
func CanManageEvent(a Access, eventOrgID *int64) bool {
	if a.IsSuperAdmin() {
		return true
	}
	if !a.IsOrganization() || eventOrgID == nil {
		return false
	}
	return a.BelongsTo(*eventOrgID)
}

// CanViewParticipants follows the same rule as CanManageEvent.
func CanViewParticipants(a Access, eventOrgID *int64) bool {
	return CanManageEvent(a, eventOrgID)
}

// CanManageOrganization reports whether the caller may edit organization orgID or its users.
func CanManageOrganization(a Access, orgID int64) bool {
	if a.IsSuperAdmin() {
		return true
	}
	return a.IsOrganization() && a.BelongsTo(orgID)
}

// CanDeleteOrganization reports whether the caller may delete organizations.
// Organization admins never can, including their own.
func CanDeleteOrganization(a Access) bool { return a.IsSuperAdmin() }

// CanManageRoles reports whether the caller may change roles and profile types.
func CanManageRoles(a Access) bool { return a.IsSuperAdmin() }
