package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Lister reads delivery logs.
type Lister interface {
	List(ctx context.Context, f Filter) ([]models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/email-logs?status=&email_type=&limit=.
func (h *Handler) List(c *gin.Context) {
	f := Filter{Status: c.Query("status"), EmailType: c.Query("email_type"), Limit: defaultLimit}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		f.Limit = min(n, maxLimit)
	}
	if f.Status != "" && f.Status != models.EmailLogStatusSent && f.Status != models.EmailLogStatusFailed {
		response.BadRequest(c, "invalid status")
		return
	}
	logs, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
