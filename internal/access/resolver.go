package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

// ProfileStore reads the two authorization fields of a user.
type ProfileStore interface {
	ProfileType(ctx context.Context, userID uuid.UUID) (models.ProfileType, error)
	Role(ctx context.Context, userID uuid.UUID) (models.Role, error)
}

// Resolver derives the Access of a user and keeps it for the session.
type Resolver struct {
	profiles ProfileStore
	binder   *Binder
	cache    Cache
	logger   *zap.Logger
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(profiles ProfileStore, binder *Binder, cache Cache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{profiles: profiles, binder: binder, cache: cache, logger: logger}
}

// Resolve returns the access context of userID. It never fails: any lookup
// error, including a missing row, falls back to the "user" profile and role.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) Access {
	if userID == uuid.Nil {
		return Anonymous()
	}
	if r.cache != nil {
		if a, ok := r.cache.Get(ctx, userID); ok {
			return a
		}
	}

	a, complete := r.load(ctx, userID)
	// Downgraded results from failed reads are not kept for the session.
	if complete && r.cache != nil {
		r.cache.Set(ctx, a)
	}
	return a
}

// Invalidate drops the cached access of userID, e.g. on sign-out or role change.
func (r *Resolver) Invalidate(ctx context.Context, userID uuid.UUID) {
	if r.cache == nil || userID == uuid.Nil {
		return
	}
	r.cache.Delete(ctx, userID)
}

func (r *Resolver) load(ctx context.Context, userID uuid.UUID) (Access, bool) {
	complete := true
	a := Access{UserID: userID, ProfileType: models.ProfileUser, Role: models.RoleUser}

	profile, err := r.profiles.ProfileType(ctx, userID)
	switch {
	case err == nil:
		a.ProfileType = models.ParseProfileType(string(profile))
	case errors.Is(err, database.ErrNotFound):
	default:
		complete = false
		r.logger.Warn("resolve profile type", zap.Error(err), zap.String("user_id", userID.String()))
	}

	role, err := r.profiles.Role(ctx, userID)
	switch {
	case err == nil:
		a.Role = models.ParseRole(string(role))
	case errors.Is(err, database.ErrNotFound):
	default:
		complete = false
		r.logger.Warn("resolve role", zap.Error(err), zap.String("user_id", userID.String()))
	}

	a.Level = LevelFor(a.ProfileType)
	if a.Level == LevelOrganization && r.binder != nil {
		orgID, ok := r.binder.lookup(ctx, userID)
		if !ok {
			complete = false
		}
		a.OrganizationID = orgID
	}
	return a, complete
}
