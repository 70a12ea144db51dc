package organizations

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/auth"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
	"github.com/missoes/backend/pkg/utils"
)

// Routes under /api answer errors with response.Problem bodies.

// AddUserRequest is the body for POST /api/organizations/:id/users.
type AddUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AddUserResponse is returned after an organization user is created.
type AddUserResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	Message string       `json:"message"`
}

// UserOrganizationsRequest is the body for POST /api/users/organizations.
type UserOrganizationsRequest struct {
	UserIDs []uuid.UUID `json:"userIds"`
}

// AddUser handles POST /api/organizations/:id/users.
func (h *Handler) AddUser(c *gin.Context) {
	id, ok := problemOrgID(c)
	if !ok {
		return
	}
	if !access.CanManageOrganization(middleware.CurrentAccess(c), id) {
		response.WriteProblem(c, http.StatusForbidden, response.Problem{Error: "Not authorized for this organization"})
		return
	}
	ctx := c.Request.Context()
	org, err := h.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.WriteProblem(c, http.StatusNotFound, response.Problem{Error: "Organization not found"})
			return
		}
		h.logger.Error("load organization", zap.Error(err), zap.Int64("organization_id", id))
		response.WriteProblem(c, http.StatusInternalServerError, response.Problem{Error: "Failed to load organization"})
		return
	}
	var req AddUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteProblem(c, http.StatusBadRequest, response.Problem{Error: "Invalid request body", Details: err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		response.WriteProblem(c, http.StatusBadRequest, response.Problem{Error: "Name and email are required"})
		return
	}
	if !utils.ValidEmail(req.Email) {
		response.WriteProblem(c, http.StatusBadRequest, response.Problem{Error: "Invalid email"})
		return
	}
	if req.Password != "" && len(req.Password) < 6 {
		response.WriteProblem(c, http.StatusBadRequest, response.Problem{Error: "Password must be at least 6 characters"})
		return
	}
	account, user, err := h.provision.AddUser(ctx, org.ID, auth.NewAccount{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			response.WriteProblem(c, http.StatusConflict, response.Problem{Error: "Email already registered"})
			return
		}
		h.logger.Error("add organization user", zap.Error(err), zap.Int64("organization_id", id))
		response.WriteProblem(c, http.StatusInternalServerError, response.Problem{Error: "Failed to create user", Details: err.Error()})
		return
	}
	if req.Password == "" {
		if err := h.links.SendLink(ctx, account, user.Name, models.EmailTypeRecovery); err != nil {
			h.logger.Warn("enqueue set-password link", zap.Error(err), zap.String("user_id", user.ID.String()))
		}
	}
	c.JSON(http.StatusCreated, AddUserResponse{
		Success: true,
		User:    user,
		Message: "User created and linked to " + org.Name,
	})
}

// ListUsers handles GET /api/organizations/:id/users.
func (h *Handler) ListUsers(c *gin.Context) {
	id, ok := problemOrgID(c)
	if !ok {
		return
	}
	if !access.CanManageOrganization(middleware.CurrentAccess(c), id) {
		response.WriteProblem(c, http.StatusForbidden, response.Problem{Error: "Not authorized for this organization"})
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetByID(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.WriteProblem(c, http.StatusNotFound, response.Problem{Error: "Organization not found"})
			return
		}
		response.WriteProblem(c, http.StatusInternalServerError, response.Problem{Error: "Failed to load organization"})
		return
	}
	members, err := h.store.Members(ctx, id)
	if err != nil {
		h.logger.Error("list organization users", zap.Error(err), zap.Int64("organization_id", id))
		response.WriteProblem(c, http.StatusInternalServerError, response.Problem{Error: "Failed to list users", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": members})
}

// UserOrganizations handles POST /api/users/organizations. Users without an
// organization map to id 0.
func (h *Handler) UserOrganizations(c *gin.Context) {
	if !access.CanAccessAdmin(middleware.CurrentAccess(c)) {
		response.WriteProblem(c, http.StatusForbidden, response.Problem{Error: "Not authorized"})
		return
	}
	var req UserOrganizationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.WriteProblem(c, http.StatusBadRequest, response.Problem{Error: "Invalid request body", Details: err.Error()})
		return
	}
	if len(req.UserIDs) == 0 {
		response.WriteProblem(c, http.StatusBadRequest, response.Problem{Error: "userIds is required"})
		return
	}
	found, err := h.bindings.OrganizationsForUsers(c.Request.Context(), req.UserIDs)
	if err != nil {
		h.logger.Error("resolve user organizations", zap.Error(err))
		response.WriteProblem(c, http.StatusInternalServerError, response.Problem{Error: "Failed to resolve organizations", Details: err.Error()})
		return
	}
	out := make(map[string]access.Binding, len(found))
	for id, b := range found {
		out[id.String()] = b
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "organizations": out})
}

func problemOrgID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.WriteProblem(c, http.StatusBadRequest, response.Problem{Error: "Invalid organization ID"})
		return 0, false
	}
	return id, true
}
