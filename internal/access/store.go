package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

// PostgresStore implements ProfileStore and MembershipStore.
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a store on db.
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// ProfileType returns users.profile_type.
func (s *PostgresStore) ProfileType(ctx context.Context, userID uuid.UUID) (models.ProfileType, error) {
	var p string
	err := s.db.QueryRow(ctx, `SELECT profile_type FROM users WHERE id = $1`, userID).Scan(&p)
	if err != nil {
		return "", database.NotFound(err)
	}
	return models.ProfileType(p), nil
}

// Role returns user_roles.role.
func (s *PostgresStore) Role(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	var r string
	err := s.db.QueryRow(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID).Scan(&r)
	if err != nil {
		return "", database.NotFound(err)
	}
	return models.Role(r), nil
}

// OrganizationForUser returns the organization of userID, owners first, then oldest membership.
func (s *PostgresStore) OrganizationForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const q = `SELECT organization_id FROM organization_members
		WHERE user_id = $1
		ORDER BY (role = 'owner') DESC, created_at ASC
		LIMIT 1`
	var id int64
	if err := s.db.QueryRow(ctx, q, userID).Scan(&id); err != nil {
		return 0, database.NotFound(err)
	}
	return id, nil
}

// OrganizationsForUsers resolves the organization of each user that has one.
func (s *PostgresStore) OrganizationsForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]Binding, error) {
	const q = `SELECT DISTINCT ON (m.user_id) m.user_id, o.id, o.name, u.profile_type
		FROM organization_members m
		JOIN organizations o ON o.id = m.organization_id
		JOIN users u ON u.id = m.user_id
		WHERE m.user_id = ANY($1::uuid[])
		ORDER BY m.user_id, (m.role = 'owner') DESC, m.created_at ASC`
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}
	rows, err := s.db.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]Binding)
	for rows.Next() {
		var userID uuid.UUID
		var b Binding
		var profile string
		if err := rows.Scan(&userID, &b.ID, &b.Name, &profile); err != nil {
			return nil, err
		}
		b.ProfileType = models.ParseProfileType(profile)
		out[userID] = b
	}
	return out, rows.Err()
}
