package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

const columns = `id, user_id, slug, meta_data, is_read, created_at`

// Repository handles notifications persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a notifications repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

func scan(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	var meta []byte
	if err := row.Scan(&n.ID, &n.UserID, &n.Slug, &meta, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, database.NotFound(err)
	}
	n.MetaData = json.RawMessage(meta)
	return &n, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Notification, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	list := []models.Notification{}
	for rows.Next() {
		n, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

// Create inserts an unread notification. meta is stored as JSON.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, slug string, meta any) (*models.Notification, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal meta_data: %w", err)
	}
	if meta == nil {
		raw = []byte("{}")
	}
	q := `INSERT INTO notifications (user_id, slug, meta_data) VALUES ($1, $2, $3) RETURNING ` + columns
	n, err := scan(r.db.QueryRow(ctx, q, userID, slug, raw))
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// Recent returns the latest limit notifications of userID.
func (r *Repository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	return r.list(ctx, `SELECT `+columns+` FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

// Page returns page (1-based) of userID's notifications and their total count.
func (r *Repository) Page(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Notification, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	list, err := r.list(ctx, `SELECT `+columns+` FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, (page-1)*limit)
	return list, total, err
}

// UnreadCount counts userID's unread notifications.
func (r *Repository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

// MarkRead marks one notification of userID as read. Returns false when it does not exist.
func (r *Repository) MarkRead(ctx context.Context, userID uuid.UUID, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAllRead marks every notification of userID as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes one notification of userID. Returns false when it does not exist.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteRead removes userID's read notifications.
func (r *Repository) DeleteRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1 AND is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
