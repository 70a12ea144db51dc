package access

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/internal/testutil"
)

func TestBackfilledMetadataMembershipResolves(t *testing.T) {
	db := testutil.NewTestDBAt(t, 1)
	ctx := context.Background()

	owner := testutil.SeedUser(t, db.Pool, "dona@missao.org", "organization", "")
	member := testutil.SeedUser(t, db.Pool, "voluntaria@missao.org", "organization", `{"organization_id": 7}`)
	volunteer := testutil.SeedUser(t, db.Pool, "ana@exemplo.com", "user", "")
	_, err := db.Pool.Exec(ctx, `INSERT INTO organizations (id, name, user_id) VALUES (7, 'Missão Sul', $1)`, owner)
	require.NoError(t, err)

	db.MigrateUp(t)

	store := NewPostgresStore(db.Pool)
	r := NewResolver(store, NewBinder(store, nil), nil, nil)

	for _, id := range []uuid.UUID{owner, member} {
		a := r.Resolve(ctx, id)
		require.NotNil(t, a.OrganizationID)
		assert.Equal(t, int64(7), *a.OrganizationID)
		assert.Equal(t, LevelOrganization, a.Level)
	}
	assert.Nil(t, r.Resolve(ctx, volunteer).OrganizationID)

	bindings, err := store.OrganizationsForUsers(ctx, []uuid.UUID{owner, member, volunteer})
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	assert.Equal(t, Binding{ID: 7, Name: "Missão Sul", ProfileType: models.ProfileOrganization}, bindings[member])
}

func TestOwnershipWinsOverOlderMembership(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	user := testutil.SeedUser(t, db.Pool, "coord@missao.org", "organization", "")
	_, err := db.Pool.Exec(ctx, `INSERT INTO organizations (id, name) VALUES (7, 'Missão Sul'), (9, 'Missão Norte')`)
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx, `INSERT INTO organization_members (user_id, organization_id, role, created_at)
		VALUES ($1, 7, 'member', NOW() - INTERVAL '1 day'), ($1, 9, 'owner', NOW())`, user)
	require.NoError(t, err)

	store := NewPostgresStore(db.Pool)
	id, err := store.OrganizationForUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	bindings, err := store.OrganizationsForUsers(ctx, []uuid.UUID{user})
	require.NoError(t, err)
	assert.Equal(t, int64(9), bindings[user].ID)
}
