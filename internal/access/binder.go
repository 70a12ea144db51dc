package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/models"
	"github.com/missoes/backend/pkg/database"
)

// Binding is the organization a user belongs to. ID is 0 when there is none.
type Binding struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	ProfileType models.ProfileType `json:"profile_type"`
}

// MembershipStore reads organization_members.
type MembershipStore interface {
	// OrganizationForUser returns database.ErrNotFound when the user has no membership.
	OrganizationForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	OrganizationsForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]Binding, error)
}

// Binder resolves the organization of organization users.
type Binder struct {
	store  MembershipStore
	logger *zap.Logger
}

// NewBinder creates a binder.
func NewBinder(store MembershipStore, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{store: store, logger: logger}
}

// OrganizationFor returns the organization id of userID, or nil when none resolves.
func (b *Binder) OrganizationFor(ctx context.Context, userID uuid.UUID) *int64 {
	id, _ := b.lookup(ctx, userID)
	return id
}

// lookup also reports whether the read succeeded; a missing membership is a success.
func (b *Binder) lookup(ctx context.Context, userID uuid.UUID) (*int64, bool) {
	id, err := b.store.OrganizationForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, true
		}
		b.logger.Warn("resolve organization", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, false
	}
	return &id, true
}

// OrganizationsForUsers resolves a batch of users. Every requested id is present in
// the result; users without an organization map to a Binding with ID 0.
func (b *Binder) OrganizationsForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]Binding, error) {
	out := make(map[uuid.UUID]Binding, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	found, err := b.store.OrganizationsForUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		if binding, ok := found[id]; ok {
			out[id] = binding
			continue
		}
		out[id] = Binding{ID: 0, ProfileType: models.ProfileUser}
	}
	return out, nil
}
