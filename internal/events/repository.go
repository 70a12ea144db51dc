package events

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const eventColumns = `id, title, image, description, location, instructions, organization_id, event_category_id, created_at, updated_at`

// Filter narrows the public listing.
type Filter struct {
	CategoryID     *int64
	OrganizationID *int64
}

// Repository handles events persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an events repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

func joinedSelect() sq.SelectBuilder {
	return psql.Select(
		"e.id", "e.title", "e.image", "e.description", "e.location", "e.instructions",
		"e.organization_id", "e.event_category_id", "e.created_at", "e.updated_at",
		"o.name", "c.label", "c.color",
	).From("events e").
		LeftJoin("organizations o ON o.id = e.organization_id").
		LeftJoin("event_categories c ON c.id = e.event_category_id")
}

func scanJoined(row pgx.Row) (*models.Event, error) {
	var e models.Event
	var orgName, catLabel, catColor *string
	if err := row.Scan(&e.ID, &e.Title, &e.Image, &e.Description, &e.Location, &e.Instructions,
		&e.OrganizationID, &e.EventCategoryID, &e.CreatedAt, &e.UpdatedAt,
		&orgName, &catLabel, &catColor); err != nil {
		return nil, database.NotFound(err)
	}
	if e.OrganizationID != nil && orgName != nil {
		e.Organization = &models.OrganizationRef{ID: *e.OrganizationID, Name: *orgName}
	}
	if e.EventCategoryID != nil && catLabel != nil {
		e.Category = &models.CategoryRef{ID: *e.EventCategoryID, Label: *catLabel}
		if catColor != nil {
			e.Category.Color = *catColor
		}
	}
	return &e, nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	if err := row.Scan(&e.ID, &e.Title, &e.Image, &e.Description, &e.Location, &e.Instructions,
		&e.OrganizationID, &e.EventCategoryID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, database.NotFound(err)
	}
	return &e, nil
}

func (r *Repository) query(ctx context.Context, b sq.SelectBuilder) ([]models.Event, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanJoined(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// List returns events newest first, with organization and category joined.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Event, error) {
	b := joinedSelect().OrderBy("e.created_at DESC")
	if f.CategoryID != nil {
		b = b.Where(sq.Eq{"e.event_category_id": *f.CategoryID})
	}
	if f.OrganizationID != nil {
		b = b.Where(sq.Eq{"e.organization_id": *f.OrganizationID})
	}
	return r.query(ctx, b)
}

// ListScoped returns the events visible in scope, newest first.
func (r *Repository) ListScoped(ctx context.Context, scope access.Scope) ([]models.Event, error) {
	b, ok := scope.Apply(joinedSelect().OrderBy("e.created_at DESC"), "e.organization_id")
	if !ok {
		return []models.Event{}, nil
	}
	return r.query(ctx, b)
}

// GetByID returns an event with organization and category joined.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	q, args, err := joinedSelect().Where(sq.Eq{"e.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}
	return scanJoined(r.db.QueryRow(ctx, q, args...))
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, in models.EventInput) (*models.Event, error) {
	q := `INSERT INTO events (title, image, description, location, instructions, organization_id, event_category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING ` + eventColumns
	e, err := scanEvent(r.db.QueryRow(ctx, q, in.Title, in.Image, in.Description, in.Location, in.Instructions,
		in.OrganizationID, in.EventCategoryID))
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return e, nil
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, id int64, in models.EventUpdate) (*models.Event, error) {
	b := psql.Update("events").Set("updated_at", time.Now()).Where(sq.Eq{"id": id}).Suffix("RETURNING " + eventColumns)
	if in.Title != nil {
		b = b.Set("title", *in.Title)
	}
	if in.Image != nil {
		b = b.Set("image", *in.Image)
	}
	if in.Description != nil {
		b = b.Set("description", *in.Description)
	}
	if in.Location != nil {
		b = b.Set("location", *in.Location)
	}
	if in.Instructions != nil {
		b = b.Set("instructions", *in.Instructions)
	}
	if in.OrganizationID != nil {
		b = b.Set("organization_id", *in.OrganizationID)
	}
	if in.EventCategoryID != nil {
		b = b.Set("event_category_id", *in.EventCategoryID)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	return scanEvent(r.db.QueryRow(ctx, q, args...))
}

// Delete removes an event and, by cascade, its missions.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
