package missions

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/broker"
	"github.com/missoes/backend/internal/metrics"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
)

// Store is the persistence used by the mission handlers.
type Store interface {
	Accept(ctx context.Context, userID uuid.UUID, eventID int64, status models.MissionStatus) (*models.UserEvent, bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.UserEvent, error)
	Get(ctx context.Context, userID uuid.UUID, eventID int64) (*models.UserEvent, error)
	UpdateStatus(ctx context.Context, userID uuid.UUID, eventID int64, status models.MissionStatus) (*models.UserEvent, error)
	Delete(ctx context.Context, userID uuid.UUID, eventID int64) error
	Stats(ctx context.Context, userID uuid.UUID) (models.MissionStats, error)
	Participants(ctx context.Context, eventID int64) ([]models.Participant, error)
	CountParticipants(ctx context.Context, eventID int64) (int, error)
	Participation(ctx context.Context, id int64) (*models.UserEvent, *int64, error)
	SetParticipationStatus(ctx context.Context, id int64, status models.MissionStatus) (*models.UserEvent, error)
}

// EventLoader loads the event being accepted.
type EventLoader interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

// Notifier creates user notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, slug string, meta any) (*models.Notification, error)
}

// Handler handles mission and participant endpoints.
type Handler struct {
	store     Store
	events    EventLoader
	notifier  Notifier
	publisher broker.Publisher
	logger    *zap.Logger
}

// NewHandler creates a missions handler.
func NewHandler(store Store, events EventLoader, notifier Notifier, publisher broker.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = broker.Nop{}
	}
	return &Handler{store: store, events: events, notifier: notifier, publisher: publisher, logger: logger}
}

// StatusRequest carries a mission status.
type StatusRequest struct {
	Status models.MissionStatus `json:"status"`
}

// Accept handles POST /events/:id/accept. Only the first acceptance notifies.
func (h *Handler) Accept(c *gin.Context) {
	eventID, ok := idParam(c, "id", "invalid event id")
	if !ok {
		return
	}
	var req StatusRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	if req.Status == "" {
		req.Status = models.MissionAccepted
	}
	if !req.Status.Valid() {
		response.BadRequest(c, "invalid status")
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	event, err := h.events.GetByID(ctx, eventID)
	if err != nil {
		h.writeError(c, err, "event not found")
		return
	}
	mission, inserted, err := h.store.Accept(ctx, userID, eventID, req.Status)
	if err != nil {
		h.writeError(c, err, "event not found")
		return
	}
	if !inserted {
		metrics.MissionAccepts.WithLabelValues("updated").Inc()
		response.OK(c, mission)
		return
	}
	metrics.MissionAccepts.WithLabelValues("inserted").Inc()
	// Notification and broker failures never fail the acceptance.
	_, _ = h.notifier.Notify(ctx, userID, models.NotificationEventSubscribe, map[string]any{
		"event_id":    event.ID,
		"event_title": event.Title,
	})
	if err := h.publisher.Publish(ctx, broker.QueueMissionAccepted, broker.MissionAccepted{
		UserID:     userID,
		EventID:    event.ID,
		EventTitle: event.Title,
		Status:     string(mission.Status),
		AcceptedAt: time.Now().UTC(),
	}); err != nil {
		h.logger.Warn("publish mission.accepted", zap.Error(err), zap.Int64("event_id", eventID))
	}
	response.Created(c, mission)
}

// MyMissions handles GET /me/missions.
func (h *Handler) MyMissions(c *gin.Context) {
	list, err := h.store.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("list missions", zap.Error(err))
		response.Internal(c, "failed to list missions")
		return
	}
	response.OK(c, list)
}

// EventMission handles GET /events/:id/mission. Data is null when the caller has not accepted the event.
func (h *Handler) EventMission(c *gin.Context) {
	eventID, ok := idParam(c, "id", "invalid event id")
	if !ok {
		return
	}
	m, err := h.store.Get(c.Request.Context(), middleware.UserID(c), eventID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.OK(c, nil)
			return
		}
		h.writeError(c, err, "mission not found")
		return
	}
	response.OK(c, m)
}

// UpdateMine handles PATCH /me/missions/:eventId.
func (h *Handler) UpdateMine(c *gin.Context) {
	eventID, ok := idParam(c, "eventId", "invalid event id")
	if !ok {
		return
	}
	status, ok := bindStatus(c)
	if !ok {
		return
	}
	m, err := h.store.UpdateStatus(c.Request.Context(), middleware.UserID(c), eventID, status)
	if err != nil {
		h.writeError(c, err, "mission not found")
		return
	}
	response.OK(c, m)
}

// DeleteMine handles DELETE /me/missions/:eventId.
func (h *Handler) DeleteMine(c *gin.Context) {
	eventID, ok := idParam(c, "eventId", "invalid event id")
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), middleware.UserID(c), eventID); err != nil {
		h.writeError(c, err, "mission not found")
		return
	}
	response.NoContent(c)
}

// MyStats handles GET /me/stats.
func (h *Handler) MyStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.logger.Error("mission stats", zap.Error(err))
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, stats)
}

func (h *Handler) writeError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, database.ErrNotFound), database.IsForeignKeyViolation(err):
		response.NotFound(c, notFound)
	default:
		h.logger.Error("mission", zap.Error(err))
		response.Internal(c, "failed to process mission")
	}
}

func bindStatus(c *gin.Context) (models.MissionStatus, bool) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return "", false
	}
	if !req.Status.Valid() {
		response.BadRequest(c, "invalid status")
		return "", false
	}
	return req.Status, true
}

func idParam(c *gin.Context, name, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, msg)
		return 0, false
	}
	return id, true
}
