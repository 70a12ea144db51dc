package organizations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/internal/testutil"
)

func TestMembersListsMainUserFirst(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	owner := testutil.SeedUser(t, db.Pool, "dona@missao.org", "organization", "")
	member := testutil.SeedUser(t, db.Pool, "voluntaria@missao.org", "organization", "")
	outsider := testutil.SeedUser(t, db.Pool, "outra@missao.org", "organization", "")
	_, err := db.Pool.Exec(ctx, `INSERT INTO organizations (id, name, user_id) VALUES (7, 'Missão Sul', $1), (9, 'Missão Norte', NULL)`, owner)
	require.NoError(t, err)
	_, err = db.Pool.Exec(ctx, `INSERT INTO organization_members (user_id, organization_id, role) VALUES ($1, 7, 'member'), ($2, 9, 'member')`,
		member, outsider)
	require.NoError(t, err)

	list, err := NewRepository(db.Pool).Members(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, owner, list[0].UserID)
	assert.True(t, list[0].IsMain)
	assert.Equal(t, "owner", list[0].Role)
	assert.Equal(t, member, list[1].UserID)
	assert.False(t, list[1].IsMain)
	assert.Equal(t, "member", list[1].Role)
	assert.Equal(t, int64(7), list[1].OrganizationID)
}
