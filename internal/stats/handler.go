package stats

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/pkg/response"
)

// RecentWindow is the period counted by recentEvents and activeUsers.
const RecentWindow = 30 * 24 * time.Hour

const (
	defaultActivityLimit = 10
	maxActivityLimit     = 50
)

// Store runs the dashboard aggregates.
type Store interface {
	Summary(ctx context.Context, scope access.Scope, since time.Time) (Summary, error)
	ByCategory(ctx context.Context, scope access.Scope) ([]CategoryCount, error)
	Activity(ctx context.Context, scope access.Scope, limit int) ([]Activity, error)
}

// Handler serves the back-office dashboard.
type Handler struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a stats handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, now: time.Now, logger: logger}
}

// Summary handles GET /admin/stats.
func (h *Handler) Summary(c *gin.Context) {
	scope := access.ScopeFor(middleware.CurrentAccess(c))
	s, err := h.store.Summary(c.Request.Context(), scope, h.now().Add(-RecentWindow))
	if err != nil {
		h.logger.Error("stats summary", zap.Error(err), zap.Stringer("scope", scope))
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, s)
}

// Categories handles GET /admin/stats/categories.
func (h *Handler) Categories(c *gin.Context) {
	list, err := h.store.ByCategory(c.Request.Context(), access.ScopeFor(middleware.CurrentAccess(c)))
	if err != nil {
		h.logger.Error("stats by category", zap.Error(err))
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, list)
}

// Activity handles GET /admin/stats/activity?limit=.
func (h *Handler) Activity(c *gin.Context) {
	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxActivityLimit)
	}
	list, err := h.store.Activity(c.Request.Context(), access.ScopeFor(middleware.CurrentAccess(c)), limit)
	if err != nil {
		h.logger.Error("stats activity", zap.Error(err))
		response.Internal(c, "failed to load activity")
		return
	}
	response.OK(c, list)
}
