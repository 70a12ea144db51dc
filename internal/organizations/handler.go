package organizations

import (
	"context"
	"errors"
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

// Store is the persistence used by the organization handlers.
type Store interface {
	List(ctx context.Context, scope access.Scope) ([]models.Organization, error)
	GetByID(ctx context.Context, id int64) (*models.Organization, error)
	Update(ctx context.Context, id int64, in models.OrganizationUpdate) (*models.Organization, error)
	Delete(ctx context.Context, id int64) error
	MemberIDs(ctx context.Context, orgID int64) ([]uuid.UUID, error)
	Members(ctx context.Context, orgID int64) ([]models.OrganizationMember, error)
}

// Provisioning creates accounts bound to organizations.
type Provisioning interface {
	CreateWithOwner(ctx context.Context, in models.OrganizationInput, email string) (*models.Organization, *models.Account, error)
	AddUser(ctx context.Context, orgID int64, in auth.NewAccount) (*models.Account, *models.User, error)
}

// LinkSender e-mails a set-password link.
type LinkSender interface {
	SendLink(ctx context.Context, account *models.Account, name, emailType string) error
}

// Bindings resolves the organization of many users at once.
type Bindings interface {
	OrganizationsForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]access.Binding, error)
}

// Invalidator drops a user's cached access.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	store     Store
	provision Provisioning
	links     LinkSender
	bindings  Bindings
	access    Invalidator
	logger    *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(store Store, provision Provisioning, links LinkSender, bindings Bindings, access Invalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, provision: provision, links: links, bindings: bindings, access: access, logger: logger}
}

// CreateOrganizationRequest is the body for POST /admin/organizations.
type CreateOrganizationRequest struct {
	models.OrganizationInput
	Email string `json:"email"`
}

// List handles GET /admin/organizations. Organization admins only see their own.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), access.ScopeFor(middleware.CurrentAccess(c)))
	if err != nil {
		h.logger.Error("list organizations", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /admin/organizations/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	if !access.ScopeFor(middleware.CurrentAccess(c)).Includes(&id) {
		response.Forbidden(c, "not authorized for this organization")
		return
	}
	org, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, org)
}

// Create handles POST /admin/organizations. The owner receives a set-password
// link once everything is committed.
func (h *Handler) Create(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		response.BadRequest(c, "name and email are required")
		return
	}
	if !utils.ValidEmail(req.Email) {
		response.BadRequest(c, "invalid email")
		return
	}
	ctx := c.Request.Context()
	org, account, err := h.provision.CreateWithOwner(ctx, req.OrganizationInput, req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("create organization", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	if err := h.links.SendLink(ctx, account, org.Name, models.EmailTypeWelcome); err != nil {
		h.logger.Warn("enqueue organization welcome", zap.Error(err), zap.Int64("organization_id", org.ID))
	}
	response.Created(c, org)
}

// Update handles PATCH /admin/organizations/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	if !access.CanManageOrganization(middleware.CurrentAccess(c), id) {
		response.Forbidden(c, "not authorized for this organization")
		return
	}
	var in models.OrganizationUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		response.BadRequest(c, "name cannot be empty")
		return
	}
	org, err := h.store.Update(c.Request.Context(), id, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, org)
}

// Delete handles DELETE /admin/organizations/:id. Super admins only.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	if !access.CanDeleteOrganization(middleware.CurrentAccess(c)) {
		response.Forbidden(c, "only administrators can delete organizations")
		return
	}
	ctx := c.Request.Context()
	members, err := h.store.MemberIDs(ctx, id)
	if err != nil {
		h.logger.Warn("list members before delete", zap.Error(err), zap.Int64("organization_id", id))
	}
	if err := h.store.Delete(ctx, id); err != nil {
		h.writeError(c, err)
		return
	}
	for _, userID := range members {
		h.access.Invalidate(ctx, userID)
	}
	response.NoContent(c)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "organization not found")
		return
	}
	h.logger.Error("organization", zap.Error(err))
	response.Internal(c, "failed to process organization")
}

func orgID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid organization id")
		return 0, false
	}
	return id, true
}
