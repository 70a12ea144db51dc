package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const userColumns = `id, name, email, birth_date, phone, profile_type, created_at, updated_at`

// Repository handles users (profiles) and user_roles persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a users repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

// ProfileName picks the display name of a new profile: the metadata full name,
// else the e-mail local part, else DefaultProfileName.
func ProfileName(fullName, email string) string {
	if name := strings.TrimSpace(fullName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(email, "@"); ok && strings.TrimSpace(local) != "" {
		return strings.TrimSpace(local)
	}
	return models.DefaultProfileName
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var profile string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.BirthDate, &u.Phone, &profile, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, database.NotFound(err)
	}
	u.ProfileType = models.ParseProfileType(profile)
	return &u, nil
}

// Create inserts a profile row.
func (r *Repository) Create(ctx context.Context, id uuid.UUID, name, email string, profile models.ProfileType) (*models.User, error) {
	q := `INSERT INTO users (id, name, email, profile_type) VALUES ($1, $2, $3, $4) RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, q, id, name, email, string(profile)))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// EnsureProfile returns the profile of account, creating it with profile_type "user" when absent.
func (r *Repository) EnsureProfile(ctx context.Context, account *models.Account) (*models.User, error) {
	const ins = `INSERT INTO users (id, name, email, profile_type) VALUES ($1, $2, $3, 'user')
		ON CONFLICT (id) DO NOTHING`
	name := ProfileName(account.FullName(), account.Email)
	if _, err := r.db.Exec(ctx, ins, account.ID, name, account.Email); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return r.GetByID(ctx, account.ID)
}

// GetByID returns a profile by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a profile by e-mail, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// List returns every profile, newest first.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	list := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *u)
	}
	return list, rows.Err()
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, in models.UserUpdate) (*models.User, error) {
	b := psql.Update("users").Set("updated_at", time.Now()).Where(sq.Eq{"id": id}).Suffix("RETURNING " + userColumns)
	if in.Name != nil {
		b = b.Set("name", strings.TrimSpace(*in.Name))
	}
	if in.Email != nil {
		b = b.Set("email", strings.TrimSpace(*in.Email))
	}
	if in.BirthDate != nil {
		b = b.Set("birth_date", *in.BirthDate)
	}
	if in.Phone != nil {
		b = b.Set("phone", strings.TrimSpace(*in.Phone))
	}
	if in.ProfileType != nil {
		b = b.Set("profile_type", string(*in.ProfileType))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	return scanUser(r.db.QueryRow(ctx, q, args...))
}

// UpsertRole sets the role of userID; there is at most one role row per user.
func (r *Repository) UpsertRole(ctx context.Context, userID uuid.UUID, role models.Role) error {
	const q = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`
	if _, err := r.db.Exec(ctx, q, userID, string(role)); err != nil {
		return fmt.Errorf("upsert role: %w", err)
	}
	return nil
}

// GetRole returns the role of userID, or database.ErrNotFound.
func (r *Repository) GetRole(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	var role string
	if err := r.db.QueryRow(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID).Scan(&role); err != nil {
		return "", database.NotFound(err)
	}
	return models.ParseRole(role), nil
}

// ListWithRoles returns every profile with its role (default "user") and organization, if any.
func (r *Repository) ListWithRoles(ctx context.Context) ([]models.UserWithRole, error) {
	const q = `SELECT u.id, u.name, u.email, u.birth_date, u.phone, u.profile_type, u.created_at, u.updated_at,
			COALESCE(ur.role, 'user'), o.id, o.name
		FROM users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		LEFT JOIN LATERAL (
			SELECT m.organization_id FROM organization_members m
			WHERE m.user_id = u.id
			ORDER BY (m.role = 'owner') DESC, m.created_at ASC
			LIMIT 1
		) mem ON TRUE
		LEFT JOIN organizations o ON o.id = mem.organization_id
		ORDER BY u.created_at DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	list := []models.UserWithRole{}
	for rows.Next() {
		var u models.UserWithRole
		var profile, role string
		var orgID *int64
		var orgName *string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.BirthDate, &u.Phone, &profile, &u.CreatedAt, &u.UpdatedAt,
			&role, &orgID, &orgName); err != nil {
			return nil, err
		}
		u.ProfileType = models.ParseProfileType(profile)
		u.Role = models.ParseRole(role)
		if orgID != nil && u.ProfileType == models.ProfileOrganization {
			u.Organization = &models.OrganizationRef{ID: *orgID}
			if orgName != nil {
				u.Organization.Name = *orgName
			}
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
