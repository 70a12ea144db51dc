package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/internal/testutil"
	"github.com/missoes/backend/pkg/database"
)

func TestUpdateEmailIsUniqueIgnoringCase(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	testutil.SeedUser(t, db.Pool, "ana@missao.org", "user", "")
	bia := testutil.SeedUser(t, db.Pool, "bia@missao.org", "user", "")
	repo := NewRepository(db.Pool)

	taken := "ANA@missao.org"
	_, err := repo.Update(ctx, bia, models.UserUpdate{Email: &taken})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))

	free := "beatriz@missao.org"
	u, err := repo.Update(ctx, bia, models.UserUpdate{Email: &free})
	require.NoError(t, err)
	assert.Equal(t, free, u.Email)
}
