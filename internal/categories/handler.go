package categories

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
)

// Store is the persistence used by the category handlers.
type Store interface {
	List(ctx context.Context) ([]models.EventCategory, error)
	GetByID(ctx context.Context, id int64) (*models.EventCategory, error)
	Create(ctx context.Context, in Input) (*models.EventCategory, error)
	Update(ctx context.Context, id int64, in Input) (*models.EventCategory, error)
	Delete(ctx context.Context, id int64) error
}

// Handler handles event category endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a categories handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /categories.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list categories", zap.Error(err))
		response.Internal(c, "failed to list categories")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /categories/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := categoryID(c)
	if !ok {
		return
	}
	cat, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, cat)
}

// Create handles POST /admin/categories.
func (h *Handler) Create(c *gin.Context) {
	in, ok := h.validated(c, 0)
	if !ok {
		return
	}
	cat, err := h.store.Create(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, cat)
}

// Update handles PATCH /admin/categories/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := categoryID(c)
	if !ok {
		return
	}
	in, ok := h.validated(c, id)
	if !ok {
		return
	}
	cat, err := h.store.Update(c.Request.Context(), id, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, cat)
}

// Delete handles DELETE /admin/categories/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := categoryID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// validated binds the body and checks it before anything is written.
func (h *Handler) validated(c *gin.Context, excludeID int64) (Input, bool) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return in, false
	}
	in = in.Normalize()
	existing, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list categories", zap.Error(err))
		response.Internal(c, "failed to validate category")
		return in, false
	}
	if err := Validate(in, existing, excludeID); err != nil {
		var taken *ColorTakenError
		if errors.As(err, &taken) {
			response.Conflict(c, err.Error())
			return in, false
		}
		response.BadRequest(c, err.Error())
		return in, false
	}
	return in, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		response.NotFound(c, "category not found")
	case database.IsUniqueViolation(err):
		response.Conflict(c, "a category with this name already exists")
	case database.IsNotNullViolation(err):
		response.BadRequest(c, "all fields are required")
	default:
		h.logger.Error("category write", zap.Error(err))
		response.Internal(c, "failed to save category")
	}
}

func categoryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid category id")
		return 0, false
	}
	return id, true
}
