package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
	"github.com/missoes/backend/pkg/utils"
)

// Store is the persistence used by the users handlers.
type Store interface {
	EnsureProfile(ctx context.Context, account *models.Account) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id uuid.UUID, in models.UserUpdate) (*models.User, error)
	UpsertRole(ctx context.Context, userID uuid.UUID, role models.Role) error
	GetRole(ctx context.Context, userID uuid.UUID) (models.Role, error)
	ListWithRoles(ctx context.Context) ([]models.UserWithRole, error)
}

// AccountLookup reads auth identities.
type AccountLookup interface {
	GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Invalidator drops a user's cached access after a permission change.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// Handler handles user profile and role endpoints.
type Handler struct {
	store    Store
	accounts AccountLookup
	access   Invalidator
	logger   *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(store Store, accounts AccountLookup, access Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, accounts: accounts, access: access, logger: logger}
}

// UpdateRequest is the body for PATCH /admin/users/:id and PATCH /me.
// birth_date uses the YYYY-MM-DD form.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	BirthDate   *string `json:"birth_date"`
	Phone       *string `json:"phone"`
	ProfileType *string `json:"profile_type"`
}

func (req UpdateRequest) toUpdate() (models.UserUpdate, string) {
	var in models.UserUpdate
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return in, "name cannot be empty"
		}
		in.Name = req.Name
	}
	if req.Email != nil {
		if !utils.ValidEmail(*req.Email) {
			return in, "invalid email"
		}
		in.Email = req.Email
	}
	if req.BirthDate != nil && *req.BirthDate != "" {
		t, err := time.Parse(time.DateOnly, *req.BirthDate)
		if err != nil {
			return in, "invalid birth_date"
		}
		in.BirthDate = &t
	}
	in.Phone = req.Phone
	if req.ProfileType != nil {
		p := models.ProfileType(*req.ProfileType)
		if !p.Valid() {
			return in, "invalid profile_type"
		}
		in.ProfileType = &p
	}
	return in, ""
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /admin/users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /admin/users/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	u, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.Internal(c, "failed to load user")
		return
	}
	response.OK(c, u)
}

// Update handles PATCH /admin/users/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in, msg := req.toUpdate()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	h.update(c, id, in)
}

// Delete handles DELETE /admin/users/:id. Users are never deleted.
func (h *Handler) Delete(c *gin.Context) {
	response.MethodNotAllowed(c, "users cannot be deleted")
}

// Me handles GET /me. The profile row is created on first access.
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	account, err := h.accounts.GetAccountByID(ctx, middleware.UserID(c))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "account not found")
			return
		}
		response.Internal(c, "failed to load account")
		return
	}
	u, err := h.store.EnsureProfile(ctx, account)
	if err != nil {
		h.logger.Error("ensure profile", zap.Error(err), zap.String("user_id", account.ID.String()))
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, u)
}

// UpdateMe handles PATCH /me. Only name, phone and birth_date may change.
func (h *Handler) UpdateMe(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Email = nil
	req.ProfileType = nil
	in, msg := req.toUpdate()
	if msg != "" {
		response.BadRequest(c, msg)
		return
	}
	h.update(c, middleware.UserID(c), in)
}

func (h *Handler) update(c *gin.Context, id uuid.UUID, in models.UserUpdate) {
	ctx := c.Request.Context()
	u, err := h.store.Update(ctx, id, in)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			response.NotFound(c, "user not found")
		case database.IsUniqueViolation(err):
			response.Conflict(c, "email already in use")
		default:
			h.logger.Error("update user", zap.Error(err), zap.String("user_id", id.String()))
			response.Internal(c, "failed to update user")
		}
		return
	}
	if in.ProfileType != nil {
		h.access.Invalidate(ctx, id)
	}
	response.OK(c, u)
}
