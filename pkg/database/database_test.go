package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/missoes?sslmode=disable":   "pgx5://u:p@localhost:5432/missoes?sslmode=disable",
		"postgresql://u:p@localhost:5432/missoes?sslmode=disable": "pgx5://u:p@localhost:5432/missoes?sslmode=disable",
		"pgx5://already":                                         "pgx5://already",
	}
	for in, want := range tests {
		assert.Equal(t, want, MigrateURL(in), in)
	}
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, NotFound(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, NotFound(fmt.Errorf("get user: %w", pgx.ErrNoRows)), ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, NotFound(other))
	assert.NoError(t, NotFound(nil))
}

func TestConstraintHelpers(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	notNull := &pgconn.PgError{Code: "23502"}
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(notNull))
	assert.True(t, IsNotNullViolation(notNull))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(errors.New("plain")))
}
