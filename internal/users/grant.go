package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

// GrantAdmin turns the profile registered under email into a super admin:
// profile_type and role both become admin, in one transaction.
func GrantAdmin(ctx context.Context, pool *pgxpool.Pool, email string) (uuid.UUID, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return uuid.Nil, fmt.Errorf("email is required")
	}
	var id uuid.UUID
	err := database.WithTx(ctx, pool, func(tx pgx.Tx) error {
		const q = `UPDATE users SET profile_type = $2, updated_at = NOW()
			WHERE LOWER(email) = LOWER($1) RETURNING id`
		if err := tx.QueryRow(ctx, q, email, string(models.ProfileAdmin)).Scan(&id); err != nil {
			return database.NotFound(err)
		}
		return NewRepository(pool).WithTx(tx).UpsertRole(ctx, id, models.RoleAdmin)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("grant admin to %s: %w", email, err)
	}
	return id, nil
}
