// Package access resolves who a caller is allowed to be: the coarse access tier
// derived from the profile row, the organization the caller is bound to, and the
// listing scope that follows from both.
package access

import (
	"fmt"

	"github.com/missoes/backend/internal/models"
)

// Level is the combined access tier. Higher values include lower ones.
type Level int

const (
	LevelUnauthenticated Level = iota
	LevelUser
	LevelOrganization
	LevelAdmin
)

var levelNames = map[Level]string{
	LevelUnauthenticated: "unauthenticated",
	LevelUser:            "user",
	LevelOrganization:    "organization",
	LevelAdmin:           "admin",
}

// String returns the level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// CanAccess reports whether l meets the required minimum.
func (l Level) CanAccess(required Level) bool {
	return l >= required
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, ok := ParseLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown access level %q", text)
	}
	*l = parsed
	return nil
}

// ParseLevel returns the level named s.
func ParseLevel(s string) (Level, bool) {
	for l, name := range levelNames {
		if name == s {
			return l, true
		}
	}
	return LevelUnauthenticated, false
}

// LevelFor derives the tier of an authenticated user from their profile type.
// The role flag does not change the tier.
func LevelFor(profile models.ProfileType) Level {
	switch profile {
	case models.ProfileOrganization:
		return LevelOrganization
	case models.ProfileAdmin:
		return LevelAdmin
	default:
		return LevelUser
	}
}
