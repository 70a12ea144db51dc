package access

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/internal/models"
)

func int64p(v int64) *int64 { return &v }

func TestLevelHierarchy(t *testing.T) {
	order := []Level{LevelUnauthenticated, LevelUser, LevelOrganization, LevelAdmin}
	for i, have := range order {
		for j, required := range order {
			assert.Equal(t, i >= j, have.CanAccess(required), "%s -> %s", have, required)
		}
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelAdmin, LevelFor(models.ProfileAdmin))
	assert.Equal(t, LevelOrganization, LevelFor(models.ProfileOrganization))
	assert.Equal(t, LevelUser, LevelFor(models.ProfileUser))
	assert.Equal(t, LevelUser, LevelFor("something-else"))
}

func TestLevelJSONUsesNames(t *testing.T) {
	a := Access{UserID: uuid.New(), ProfileType: models.ProfileOrganization, Role: models.RoleAdmin, Level: LevelOrganization, OrganizationID: int64p(7)}

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"level":"organization"`)

	var back Access
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a, back)

	var l Level
	assert.Error(t, l.UnmarshalText([]byte("root")))
}

func TestAdminFlags(t *testing.T) {
	admin := Access{UserID: uuid.New(), Level: LevelAdmin}
	org := Access{UserID: uuid.New(), Level: LevelOrganization, OrganizationID: int64p(3)}
	user := Access{UserID: uuid.New(), Level: LevelUser}

	assert.True(t, admin.IsSuperAdmin())
	assert.True(t, admin.IsAdmin())
	assert.True(t, org.IsAdmin())
	assert.False(t, org.IsSuperAdmin())
	assert.False(t, user.IsAdmin())
	assert.False(t, Anonymous().Authenticated())
	assert.True(t, user.Authenticated())
}

func TestCanManageEvent(t *testing.T) {
	admin := Access{Level: LevelAdmin}
	org := Access{Level: LevelOrganization, OrganizationID: int64p(7)}
	unbound := Access{Level: LevelOrganization}
	user := Access{Level: LevelUser}

	assert.True(t, CanManageEvent(admin, nil))
	assert.True(t, CanManageEvent(admin, int64p(9)))
	assert.True(t, CanManageEvent(org, int64p(7)))
	assert.False(t, CanManageEvent(org, int64p(8)))
	assert.False(t, CanManageEvent(org, nil))
	assert.False(t, CanManageEvent(unbound, int64p(7)))
	assert.False(t, CanViewParticipants(user, int64p(7)))
}

func TestOrganizationPermissions(t *testing.T) {
	admin := Access{Level: LevelAdmin}
	org := Access{Level: LevelOrganization, OrganizationID: int64p(7)}

	assert.True(t, CanDeleteOrganization(admin))
	assert.False(t, CanDeleteOrganization(org), "organization admins never delete organizations")
	assert.True(t, CanManageOrganization(org, 7))
	assert.False(t, CanManageOrganization(org, 8))
	assert.False(t, CanManageRoles(org))
	assert.True(t, CanCreateEvent(org))
	assert.False(t, CanCreateEvent(Access{Level: LevelUser}))
}
