package users

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
)

// SetRoleRequest is the body for PUT /admin/users/:id/role.
type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ListRoles handles GET /admin/roles.
func (h *Handler) ListRoles(c *gin.Context) {
	list, err := h.store.ListWithRoles(c.Request.Context())
	if err != nil {
		h.logger.Error("list roles", zap.Error(err))
		response.Internal(c, "failed to list roles")
		return
	}
	response.OK(c, list)
}

// SetRole handles PUT /admin/users/:id/role.
func (h *Handler) SetRole(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "role required")
		return
	}
	role := models.Role(req.Role)
	if !role.Valid() {
		response.BadRequest(c, "invalid role")
		return
	}
	h.setRole(c, id, role)
}

// Promote handles POST /admin/users/:id/promote.
func (h *Handler) Promote(c *gin.Context) {
	if id, ok := parseUserID(c); ok {
		h.setRole(c, id, models.RoleAdmin)
	}
}

// Demote handles POST /admin/users/:id/demote.
func (h *Handler) Demote(c *gin.Context) {
	if id, ok := parseUserID(c); ok {
		h.setRole(c, id, models.RoleUser)
	}
}

// MyRole handles GET /me/role. A missing role row reads as "user".
func (h *Handler) MyRole(c *gin.Context) {
	role, err := h.store.GetRole(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			h.logger.Warn("get role", zap.Error(err))
		}
		role = models.RoleUser
	}
	response.OK(c, gin.H{"role": role})
}

func (h *Handler) setRole(c *gin.Context, id uuid.UUID, role models.Role) {
	ctx := c.Request.Context()
	if _, err := h.store.GetByID(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.Internal(c, "failed to load user")
		return
	}
	if err := h.store.UpsertRole(ctx, id, role); err != nil {
		h.logger.Error("set role", zap.Error(err), zap.String("user_id", id.String()))
		response.Internal(c, "failed to update role")
		return
	}
	h.access.Invalidate(ctx, id)
	response.OK(c, gin.H{"user_id": id, "role": role})
}
