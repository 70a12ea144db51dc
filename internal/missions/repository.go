package missions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

const missionColumns = `id, user_id, event_id, status, created_at, updated_at`

// Repository handles users_events persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a missions repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

func scanMission(row pgx.Row) (*models.UserEvent, error) {
	var m models.UserEvent
	var status string
	if err := row.Scan(&m.ID, &m.UserID, &m.EventID, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, database.NotFound(err)
	}
	m.Status = models.MissionStatus(status)
	return &m, nil
}

// Accept records that userID takes part in eventID with status. Concurrent calls
// converge on one row; inserted is true only for the call that created it.
func (r *Repository) Accept(ctx context.Context, userID uuid.UUID, eventID int64, status models.MissionStatus) (*models.UserEvent, bool, error) {
	const q = `INSERT INTO users_events (user_id, event_id, status) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, event_id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
		RETURNING id, user_id, event_id, status, created_at, updated_at, (xmax = 0) AS inserted`
	var m models.UserEvent
	var s string
	var inserted bool
	err := r.db.QueryRow(ctx, q, userID, eventID, string(status)).
		Scan(&m.ID, &m.UserID, &m.EventID, &s, &m.CreatedAt, &m.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("accept mission: %w", err)
	}
	m.Status = models.MissionStatus(s)
	return &m, inserted, nil
}

// ListForUser returns the missions of userID with their events, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.UserEvent, error) {
	const q = `SELECT ue.id, ue.user_id, ue.event_id, ue.status, ue.created_at, ue.updated_at,
			e.id, e.title, e.image, e.description, e.location, e.instructions,
			e.organization_id, e.event_category_id, e.created_at, e.updated_at
		FROM users_events ue
		JOIN events e ON e.id = ue.event_id
		WHERE ue.user_id = $1
		ORDER BY ue.created_at DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()
	list := []models.UserEvent{}
	for rows.Next() {
		var m models.UserEvent
		var e models.Event
		var status string
		if err := rows.Scan(&m.ID, &m.UserID, &m.EventID, &status, &m.CreatedAt, &m.UpdatedAt,
			&e.ID, &e.Title, &e.Image, &e.Description, &e.Location, &e.Instructions,
			&e.OrganizationID, &e.EventCategoryID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		m.Status = models.MissionStatus(status)
		m.Event = &e
		list = append(list, m)
	}
	return list, rows.Err()
}

// Get returns the mission of userID for eventID.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID, eventID int64) (*models.UserEvent, error) {
	return scanMission(r.db.QueryRow(ctx,
		`SELECT `+missionColumns+` FROM users_events WHERE user_id = $1 AND event_id = $2`, userID, eventID))
}

// UpdateStatus sets the status of userID's mission for eventID.
func (r *Repository) UpdateStatus(ctx context.Context, userID uuid.UUID, eventID int64, status models.MissionStatus) (*models.UserEvent, error) {
	return scanMission(r.db.QueryRow(ctx, `UPDATE users_events SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND event_id = $2 RETURNING `+missionColumns, userID, eventID, string(status)))
}

// Delete removes userID's mission for eventID.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, eventID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users_events WHERE user_id = $1 AND event_id = $2`, userID, eventID)
	if err != nil {
		return fmt.Errorf("delete mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// Stats counts the missions of userID by status.
func (r *Repository) Stats(ctx context.Context, userID uuid.UUID) (models.MissionStats, error) {
	const q = `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'accepted'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM users_events WHERE user_id = $1`
	var s models.MissionStats
	err := r.db.QueryRow(ctx, q, userID).Scan(&s.Total, &s.Pending, &s.Accepted, &s.Completed, &s.Cancelled)
	if err != nil {
		return s, fmt.Errorf("mission stats: %w", err)
	}
	return s, nil
}

// Participants returns the users taking part in eventID, newest first.
func (r *Repository) Participants(ctx context.Context, eventID int64) ([]models.Participant, error) {
	const q = `SELECT ue.id, ue.event_id, ue.status, ue.created_at,
			u.id, u.name, u.email, u.birth_date, u.phone, u.profile_type, u.created_at, u.updated_at
		FROM users_events ue
		JOIN users u ON u.id = ue.user_id
		WHERE ue.event_id = $1
		ORDER BY ue.created_at DESC`
	rows, err := r.db.Query(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	list := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		var status, profile string
		if err := rows.Scan(&p.ID, &p.EventID, &status, &p.CreatedAt,
			&p.User.ID, &p.User.Name, &p.User.Email, &p.User.BirthDate, &p.User.Phone, &profile,
			&p.User.CreatedAt, &p.User.UpdatedAt); err != nil {
			return nil, err
		}
		p.Status = models.MissionStatus(status)
		p.User.ProfileType = models.ParseProfileType(profile)
		list = append(list, p)
	}
	return list, rows.Err()
}

// CountParticipants counts the missions of eventID.
func (r *Repository) CountParticipants(ctx context.Context, eventID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users_events WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return n, nil
}

// Participation returns a mission row by ID together with its event's organization.
func (r *Repository) Participation(ctx context.Context, id int64) (*models.UserEvent, *int64, error) {
	const q = `SELECT ue.id, ue.user_id, ue.event_id, ue.status, ue.created_at, ue.updated_at, e.organization_id
		FROM users_events ue
		JOIN events e ON e.id = ue.event_id
		WHERE ue.id = $1`
	var m models.UserEvent
	var status string
	var orgID *int64
	err := r.db.QueryRow(ctx, q, id).Scan(&m.ID, &m.UserID, &m.EventID, &status, &m.CreatedAt, &m.UpdatedAt, &orgID)
	if err != nil {
		return nil, nil, database.NotFound(err)
	}
	m.Status = models.MissionStatus(status)
	return &m, orgID, nil
}

// SetParticipationStatus sets the status of mission id.
func (r *Repository) SetParticipationStatus(ctx context.Context, id int64, status models.MissionStatus) (*models.UserEvent, error) {
	return scanMission(r.db.QueryRow(ctx, `UPDATE users_events SET status = $2, updated_at = NOW()
		WHERE id = $1 RETURNING `+missionColumns, id, string(status)))
}
