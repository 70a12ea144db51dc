package emaillogs

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Filter narrows the log listing.
type Filter struct {
	Status    string
	EmailType string
	Limit     int
}

// Repository handles email_logs persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an email logs repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create records one delivery attempt.
func (r *Repository) Create(ctx context.Context, l *models.EmailLog) error {
	const q = `INSERT INTO email_logs (user_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''))
		RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, q, l.UserID, l.EmailType, l.RecipientEmail, l.Subject, l.Status, l.SentAt, l.ErrorMessage).
		Scan(&l.ID, &l.CreatedAt); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	return nil
}

// List returns logs newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.EmailLog, error) {
	b := psql.Select("id", "user_id", "email_type", "recipient_email", "subject", "status", "sent_at", "error_message", "created_at").
		From("email_logs").
		OrderBy("created_at DESC")
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.EmailType != "" {
		b = b.Where(sq.Eq{"email_type": f.EmailType})
	}
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit))
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	list := []models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.UserID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, el)
	}
	return list, rows.Err()
}
