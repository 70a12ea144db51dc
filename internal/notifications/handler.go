package notifications

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/response"
)

const (
	recentLimit     = 10
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the persistence used by the notification handlers.
type Store interface {
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	Page(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Notification, int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID uuid.UUID, id int64) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID uuid.UUID, id int64) (bool, error)
	DeleteRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Handler handles the caller's notification endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Recent handles GET /me/notifications/recent.
func (h *Handler) Recent(c *gin.Context) {
	list, err := h.store.Recent(c.Request.Context(), middleware.UserID(c), recentLimit)
	if err != nil {
		h.logger.Error("recent notifications", zap.Error(err))
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, list)
}

// List handles GET /me/notifications?page=&limit=.
func (h *Handler) List(c *gin.Context) {
	page, limit := pagination(c)
	list, total, err := h.store.Page(c.Request.Context(), middleware.UserID(c), page, limit)
	if err != nil {
		h.logger.Error("list notifications", zap.Error(err))
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, response.Page{Items: list, Total: total, Page: page, Limit: limit})
}

// UnreadCount handles GET /me/notifications/unread-count.
func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.store.UnreadCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to count notifications")
		return
	}
	response.OK(c, gin.H{"count": n})
}

// MarkRead handles POST /me/notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	found, err := h.store.MarkRead(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Internal(c, "failed to update notification")
		return
	}
	if !found {
		response.NotFound(c, "notification not found")
		return
	}
	response.OK(c, gin.H{"id": id, "is_read": true})
}

// MarkAllRead handles POST /me/notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.store.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to update notifications")
		return
	}
	response.OK(c, gin.H{"updated": n})
}

// Delete handles DELETE /me/notifications/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	found, err := h.store.Delete(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Internal(c, "failed to delete notification")
		return
	}
	if !found {
		response.NotFound(c, "notification not found")
		return
	}
	response.NoContent(c)
}

// DeleteRead handles DELETE /me/notifications/read.
func (h *Handler) DeleteRead(c *gin.Context) {
	n, err := h.store.DeleteRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Internal(c, "failed to delete notifications")
		return
	}
	response.OK(c, gin.H{"deleted": n})
}

func notificationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid notification id")
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
