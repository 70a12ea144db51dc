package events

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/access"
	"github.com/missoes/backend/internal/broker"
	"github.com/missoes/backend/internal/middleware"
	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
	"github.com/missoes/backend/pkg/response"
	"github.com/missoes/backend/pkg/storage"
)

// Store is the persistence used by the event handlers.
type Store interface {
	Loader
	List(ctx context.Context, f Filter) ([]models.Event, error)
	ListScoped(ctx context.Context, scope access.Scope) ([]models.Event, error)
	Create(ctx context.Context, in models.EventInput) (*models.Event, error)
	Update(ctx context.Context, id int64, in models.EventUpdate) (*models.Event, error)
	Delete(ctx context.Context, id int64) error
}

// ImageStore presigns direct uploads of event images.
type ImageStore interface {
	GeneratePresignedUploadURL(ctx context.Context, key, contentType string) (string, error)
	PublicObjectURL(key string) string
	KeyFromURL(url string) (string, bool)
	DeleteObject(ctx context.Context, key string) error
	PresignExpire() time.Duration
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store     Store
	images    ImageStore
	publisher broker.Publisher
	logger    *zap.Logger
}

// NewHandler creates an events handler. images may be nil when S3 is not configured.
func NewHandler(store Store, images ImageStore, publisher broker.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = broker.Nop{}
	}
	return &Handler{store: store, images: images, publisher: publisher, logger: logger}
}

// ImageUploadRequest is the body for POST /admin/events/image-upload-url.
type ImageUploadRequest struct {
	Filename       string `json:"filename" binding:"required"`
	ContentType    string `json:"content_type"`
	EventID        int64  `json:"event_id"`
	OrganizationID *int64 `json:"organization_id"`
}

// ImageUploadResponse carries the presigned PUT URL and the final public URL.
type ImageUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expires_in"`
}

// List handles GET /events?category_id=&organization_id=.
func (h *Handler) List(c *gin.Context) {
	var f Filter
	var ok bool
	if f.CategoryID, ok = optionalID(c, "category_id"); !ok {
		return
	}
	if f.OrganizationID, ok = optionalID(c, "organization_id"); !ok {
		return
	}
	list, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, e)
}

// AdminList handles GET /admin/events. Organization admins see only their own events.
func (h *Handler) AdminList(c *gin.Context) {
	list, err := h.store.ListScoped(c.Request.Context(), access.ScopeFor(middleware.CurrentAccess(c)))
	if err != nil {
		h.logger.Error("list scoped events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/events. Organization admins always create for their own organization.
func (h *Handler) Create(c *gin.Context) {
	a := middleware.CurrentAccess(c)
	if !access.CanCreateEvent(a) {
		response.Forbidden(c, "not authorized to create events")
		return
	}
	var in models.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		response.BadRequest(c, "title is required")
		return
	}
	if a.IsOrganization() {
		if a.OrganizationID == nil {
			response.Forbidden(c, "no organization linked to this account")
			return
		}
		in.OrganizationID = a.OrganizationID
	}
	if !h.imageAllowed(in.OrganizationID, in.Image) {
		response.BadRequest(c, errForeignImage)
		return
	}
	ctx := c.Request.Context()
	e, err := h.store.Create(ctx, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.publisher.Publish(ctx, broker.QueueEventCreated, broker.EventCreated{
		EventID:        e.ID,
		Title:          e.Title,
		OrganizationID: e.OrganizationID,
		CreatedBy:      a.UserID,
		CreatedAt:      e.CreatedAt,
	}); err != nil {
		h.logger.Warn("publish event.created", zap.Error(err), zap.Int64("event_id", e.ID))
	}
	response.Created(c, e)
}

// Update handles PATCH /admin/events/:id. Runs after RequireEventAccess.
func (h *Handler) Update(c *gin.Context) {
	current := CurrentEvent(c)
	if current == nil {
		response.NotFound(c, "event not found")
		return
	}
	var in models.EventUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		response.BadRequest(c, "title cannot be empty")
		return
	}
	a := middleware.CurrentAccess(c)
	if in.OrganizationID != nil && !a.IsSuperAdmin() && !a.BelongsTo(*in.OrganizationID) {
		response.Forbidden(c, "cannot move an event to another organization")
		return
	}
	owner := current.OrganizationID
	if in.OrganizationID != nil {
		owner = in.OrganizationID
	}
	if !h.imageAllowed(owner, in.Image) {
		response.BadRequest(c, errForeignImage)
		return
	}
	e, err := h.store.Update(c.Request.Context(), current.ID, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if in.Image != nil && current.Image != nil && *current.Image != *in.Image {
		h.deleteImage(c.Request.Context(), current.OrganizationID, *current.Image)
	}
	response.OK(c, e)
}

// Delete handles DELETE /admin/events/:id. Runs after RequireEventAccess.
func (h *Handler) Delete(c *gin.Context) {
	current := CurrentEvent(c)
	if current == nil {
		response.NotFound(c, "event not found")
		return
	}
	if err := h.store.Delete(c.Request.Context(), current.ID); err != nil {
		h.writeError(c, err)
		return
	}
	if current.Image != nil {
		h.deleteImage(c.Request.Context(), current.OrganizationID, *current.Image)
	}
	response.NoContent(c)
}

// ImageUploadURL handles POST /admin/events/image-upload-url.
func (h *Handler) ImageUploadURL(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	var req ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateImageType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	owner, ok := h.uploadOwner(c, req.EventID, req.OrganizationID)
	if !ok {
		return
	}
	key := storage.EventImageKey(owner, req.EventID, req.Filename)
	url, err := h.images.GeneratePresignedUploadURL(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("presign event image", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to generate upload URL")
		return
	}
	response.OK(c, ImageUploadResponse{
		UploadURL: url,
		FileURL:   h.images.PublicObjectURL(key),
		Key:       key,
		ExpiresIn: int(h.images.PresignExpire().Seconds()),
	})
}

// UploadImage handles POST /admin/events/image (multipart, form field "file").
// Clients that cannot PUT to S3 directly upload through the API instead.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage not configured")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxImageSize {
		response.BadRequest(c, "file size exceeds 5MB limit")
		return
	}
	if !storage.ValidateImageType(file.Header.Get("Content-Type"), file.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	var eventID int64
	if raw := c.PostForm("event_id"); raw != "" {
		eventID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || eventID < 0 {
			response.BadRequest(c, "invalid event id")
			return
		}
	}
	var orgID *int64
	if raw := c.PostForm("organization_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		orgID = &id
	}
	owner, ok := h.uploadOwner(c, eventID, orgID)
	if !ok {
		return
	}
	contentType := storage.ContentTypeForFilename(file.Filename)
	key := storage.EventImageKey(owner, eventID, file.Filename)

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	url, err := h.images.Upload(c.Request.Context(), key, contentType, rc, file.Size)
	if err != nil {
		h.logger.Error("upload event image", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload file to storage")
		return
	}
	response.Created(c, gin.H{
		"key":          key,
		"file_url":     url,
		"content_type": contentType,
		"file_size":    file.Size,
	})
}

const errForeignImage = "image belongs to another organization's events"

// uploadOwner resolves the organization whose key prefix a new upload goes under.
// Organization admins always upload under their own organization.
func (h *Handler) uploadOwner(c *gin.Context, eventID int64, orgID *int64) (*int64, bool) {
	a := middleware.CurrentAccess(c)
	if eventID > 0 {
		e, err := h.store.GetByID(c.Request.Context(), eventID)
		if err != nil {
			h.writeError(c, err)
			return nil, false
		}
		if !access.CanManageEvent(a, e.OrganizationID) {
			response.Forbidden(c, "not authorized to manage this event")
			return nil, false
		}
		return e.OrganizationID, true
	}
	if a.IsSuperAdmin() {
		return orgID, true
	}
	if a.OrganizationID == nil {
		response.Forbidden(c, "no organization linked to this account")
		return nil, false
	}
	return a.OrganizationID, true
}

// imageAllowed rejects bucket URLs outside the owner's prefix. External URLs are
// accepted since they are never deleted.
func (h *Handler) imageAllowed(owner *int64, url *string) bool {
	if h.images == nil || url == nil {
		return true
	}
	key, ok := h.images.KeyFromURL(*url)
	if !ok {
		return true
	}
	return storage.OwnsImageKey(owner, key)
}

// deleteImage removes an uploaded image owned by owner's events.
// URLs outside the bucket or under another organization's prefix are left alone.
func (h *Handler) deleteImage(ctx context.Context, owner *int64, url string) {
	if h.images == nil {
		return
	}
	key, ok := h.images.KeyFromURL(url)
	if !ok {
		return
	}
	if !storage.OwnsImageKey(owner, key) {
		h.logger.Warn("skip deleting foreign event image", zap.String("key", key))
		return
	}
	if err := h.images.DeleteObject(ctx, key); err != nil {
		h.logger.Warn("delete event image", zap.Error(err), zap.String("key", key))
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		response.NotFound(c, "event not found")
	case database.IsForeignKeyViolation(err):
		response.BadRequest(c, "unknown organization or category")
	case database.IsNotNullViolation(err):
		response.BadRequest(c, "all required fields must be filled")
	default:
		h.logger.Error("event", zap.Error(err))
		response.Internal(c, "failed to process event")
	}
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid event id")
		return 0, false
	}
	return id, true
}

func optionalID(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return nil, false
	}
	return &id, true
}
