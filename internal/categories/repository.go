package categories

import (
	"context"
	"fmt"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

// Repository handles event_categories persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a categories repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// List returns every category ordered by label.
func (r *Repository) List(ctx context.Context) ([]models.EventCategory, error) {
	rows, err := r.db.Query(ctx, `SELECT id, label, color, created_at FROM event_categories ORDER BY label ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	list := []models.EventCategory{}
	for rows.Next() {
		var c models.EventCategory
		if err := rows.Scan(&c.ID, &c.Label, &c.Color, &c.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// GetByID returns a category by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.EventCategory, error) {
	var c models.EventCategory
	err := r.db.QueryRow(ctx, `SELECT id, label, color, created_at FROM event_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Label, &c.Color, &c.CreatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	return &c, nil
}

// Create inserts a category.
func (r *Repository) Create(ctx context.Context, in Input) (*models.EventCategory, error) {
	c := models.EventCategory{Label: in.Label, Color: in.Color}
	err := r.db.QueryRow(ctx, `INSERT INTO event_categories (label, color) VALUES ($1, $2) RETURNING id, created_at`,
		in.Label, in.Color).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Update replaces label and color of id.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (*models.EventCategory, error) {
	var c models.EventCategory
	err := r.db.QueryRow(ctx, `UPDATE event_categories SET label = $2, color = $3 WHERE id = $1
		RETURNING id, label, color, created_at`, id, in.Label, in.Color).
		Scan(&c.ID, &c.Label, &c.Color, &c.CreatedAt)
	if err != nil {
		return nil, database.NotFound(err)
	}
	return &c, nil
}

// Delete removes a category; its events keep existing without one.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM event_categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}
