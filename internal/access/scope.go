package access

import (
	sq "github.com/Masterminds/squirrel"
)

type scopeKind int

const (
	scopeNothing scopeKind = iota
	scopeAll
	scopeOrganization
)

// Scope narrows organization-owned listings. The zero value matches nothing.
type Scope struct {
	kind  scopeKind
	orgID int64
}

// All matches every row.
func All() Scope { return Scope{kind: scopeAll} }

// Organization matches rows owned by orgID.
func Organization(orgID int64) Scope { return Scope{kind: scopeOrganization, orgID: orgID} }

// Nothing matches no row.
func Nothing() Scope { return Scope{kind: scopeNothing} }

// ScopeFor returns the listing scope of a caller. Super admins see all rows,
// organization admins their own organization's rows, everyone else nothing.
// An organization admin whose organization cannot be resolved sees nothing.
func ScopeFor(a Access) Scope {
	switch {
	case a.IsSuperAdmin():
		return All()
	case a.IsOrganization() && a.OrganizationID != nil:
		return Organization(*a.OrganizationID)
	default:
		return Nothing()
	}
}

// IsAll reports an unrestricted scope.
func (s Scope) IsAll() bool { return s.kind == scopeAll }

// IsEmpty reports a scope that matches no row.
func (s Scope) IsEmpty() bool { return s.kind == scopeNothing }

// OrganizationID returns the organization of an organization scope.
func (s Scope) OrganizationID() (int64, bool) {
	return s.orgID, s.kind == scopeOrganization
}

// Includes reports whether a row owned by orgID is visible in the scope.
func (s Scope) Includes(orgID *int64) bool {
	switch s.kind {
	case scopeAll:
		return true
	case scopeOrganization:
		return orgID != nil && *orgID == s.orgID
	default:
		return false
	}
}

// Apply adds the scope's clause on column to b. The boolean is false when the
// scope matches nothing; callers return an empty result without querying.
func (s Scope) Apply(b sq.SelectBuilder, column string) (sq.SelectBuilder, bool) {
	switch s.kind {
	case scopeAll:
		return b, true
	case scopeOrganization:
		return b.Where(sq.Eq{column: s.orgID}), true
	default:
		return b, false
	}
}

// String is used in logs.
func (s Scope) String() string {
	switch s.kind {
	case scopeAll:
		return "all"
	case scopeOrganization:
		return "organization"
	default:
		return "nothing"
	}
}
