package events

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
)

// ContextEvent is the context key for the event loaded by RequireEventAccess.
const ContextEvent = "event"

// Loader loads a single event.
type Loader interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

// RequireEventAccess loads the event named by :id and lets the request through
// only when allow accepts the caller for the event's organization. Call after RequireLevel.
func RequireEventAccess(events Loader, allow func(access.Access, *int64) bool, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		e, err := events.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				response.NotFound(c, "event not found")
			} else {
				logger.Error("load event", zap.Error(err), zap.Int64("event_id", id))
				response.Internal(c, "failed to load event")
			}
			c.Abort()
			return
		}
		if !allow(middleware.CurrentAccess(c), e.OrganizationID) {
			response.Forbidden(c, "not authorized for this event")
			c.Abort()
			return
		}
		c.Set(ContextEvent, e)
		c.Next()
	}
}

// CurrentEvent returns the event loaded by RequireEventAccess.
func CurrentEvent(c *gin.Context) *models.Event {
	v, ok := c.Get(ContextEvent)
	if !ok {
		return nil
	}
	e, _ := v.(*models.Event)
	return e
}
