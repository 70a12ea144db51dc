package missions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/events"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
)

// Participants handles GET /admin/events/:id/participants. Runs after
// events.RequireEventAccess with access.CanViewParticipants.
func (h *Handler) Participants(c *gin.Context) {
	e := events.CurrentEvent(c)
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	list, err := h.store.Participants(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("list participants", zap.Error(err), zap.Int64("event_id", e.ID))
		response.Internal(c, "failed to list participants")
		return
	}
	response.OK(c, list)
}

// ParticipantCount handles GET /admin/events/:id/participants/count.
func (h *Handler) ParticipantCount(c *gin.Context) {
	e := events.CurrentEvent(c)
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	n, err := h.store.CountParticipants(c.Request.Context(), e.ID)
	if err != nil {
		h.logger.Error("count participants", zap.Error(err), zap.Int64("event_id", e.ID))
		response.Internal(c, "failed to count participants")
		return
	}
	response.OK(c, gin.H{"count": n})
}

// UpdateParticipant handles PATCH /admin/participants/:id.
func (h *Handler) UpdateParticipant(c *gin.Context) {
	id, ok := idParam(c, "id", "invalid participant id")
	if !ok {
		return
	}
	status, ok := bindStatus(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	_, orgID, err := h.store.Participation(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "participant not found")
			return
		}
		h.writeError(c, err, "participant not found")
		return
	}
	if !access.CanViewParticipants(middleware.CurrentAccess(c), orgID) {
		response.Forbidden(c, "not authorized for this event")
		return
	}
	m, err := h.store.SetParticipationStatus(ctx, id, status)
	if err != nil {
		h.writeError(c, err, "participant not found")
		return
	}
	response.OK(c, m)
}
