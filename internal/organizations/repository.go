package organizations

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const orgColumns = `id, name, whatsapp, location, location_link, slogan, website, user_id, created_at, updated_at`

// Repository handles organization and organization_members persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an organizations repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Whatsapp, &o.Location, &o.LocationLink, &o.Slogan, &o.Website,
		&o.UserID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, database.NotFound(err)
	}
	return &o, nil
}

// List returns the organizations visible in scope, by name.
func (r *Repository) List(ctx context.Context, scope access.Scope) ([]models.Organization, error) {
	b, ok := scope.Apply(psql.Select(orgColumns).From("organizations").OrderBy("name ASC"), "id")
	if !ok {
		return []models.Organization{}, nil
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	list := []models.Organization{}
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}

// GetByID returns an organization by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Organization, error) {
	return scanOrganization(r.db.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
}

// Create inserts an organization whose main user is userID.
func (r *Repository) Create(ctx context.Context, in models.OrganizationInput, userID *uuid.UUID) (*models.Organization, error) {
	q := `INSERT INTO organizations (name, whatsapp, location, location_link, slogan, website, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING ` + orgColumns
	o, err := scanOrganization(r.db.QueryRow(ctx, q, strings.TrimSpace(in.Name), in.Whatsapp, in.Location,
		in.LocationLink, in.Slogan, in.Website, userID))
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return o, nil
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, id int64, in models.OrganizationUpdate) (*models.Organization, error) {
	b := psql.Update("organizations").Set("updated_at", time.Now()).Where(sq.Eq{"id": id}).Suffix("RETURNING " + orgColumns)
	set := func(column string, v *string) {
		if v != nil {
			b = b.Set(column, strings.TrimSpace(*v))
		}
	}
	set("name", in.Name)
	set("whatsapp", in.Whatsapp)
	set("location", in.Location)
	set("location_link", in.LocationLink)
	set("slogan", in.Slogan)
	set("website", in.Website)
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	return scanOrganization(r.db.QueryRow(ctx, q, args...))
}

// Delete removes an organization. Its events stay, unowned.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// AddMember links userID to orgID. An existing link keeps the stronger role.
func (r *Repository) AddMember(ctx context.Context, orgID int64, userID uuid.UUID, role string) error {
	const q = `INSERT INTO organization_members (user_id, organization_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, organization_id) DO UPDATE
		SET role = CASE WHEN organization_members.role = 'owner' THEN 'owner' ELSE EXCLUDED.role END`
	if _, err := r.db.Exec(ctx, q, userID, orgID, role); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// MemberIDs returns the user IDs linked to orgID.
func (r *Repository) MemberIDs(ctx context.Context, orgID int64) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM organization_members WHERE organization_id = $1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Members returns the main user of orgID followed by its other members, oldest first.
func (r *Repository) Members(ctx context.Context, orgID int64) ([]models.OrganizationMember, error) {
	const q = `SELECT u.id, o.id, COALESCE(m.role, 'owner'), u.name, u.email, u.profile_type,
			COALESCE(o.user_id = u.id, FALSE) AS is_main, COALESCE(m.created_at, o.created_at)
		FROM organizations o
		JOIN users u ON u.id = o.user_id OR u.id IN (
			SELECT user_id FROM organization_members WHERE organization_id = o.id
		)
		LEFT JOIN organization_members m ON m.organization_id = o.id AND m.user_id = u.id
		WHERE o.id = $1
		ORDER BY is_main DESC, COALESCE(m.created_at, o.created_at) ASC`
	rows, err := r.db.Query(ctx, q, orgID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	list := []models.OrganizationMember{}
	for rows.Next() {
		var m models.OrganizationMember
		if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.Role, &m.Name, &m.Email, &m.ProfileType,
			&m.IsMain, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
