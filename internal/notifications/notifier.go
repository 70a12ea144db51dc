package notifications

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/missoes/backend/internal/models"
)

// EventNotification is the realtime event carrying a new notification.
const EventNotification = "notification"

// Pusher delivers an event to the live connections of a user.
type Pusher interface {
	SendToUser(userID uuid.UUID, event string, payload any)
}

// Creator persists notifications.
type Creator interface {
	Create(ctx context.Context, userID uuid.UUID, slug string, meta any) (*models.Notification, error)
}

// Notifier creates notifications and pushes them to connected clients.
type Notifier struct {
	store  Creator
	push   Pusher
	logger *zap.Logger
}

// NewNotifier creates a notifier. push may be nil.
func NewNotifier(store Creator, push Pusher, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{store: store, push: push, logger: logger}
}

// Notify creates a notification for userID. Failures are logged and returned;
// callers treat notifications as best effort.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, slug string, meta any) (*models.Notification, error) {
	created, err := n.store.Create(ctx, userID, slug, meta)
	if err != nil {
		n.logger.Warn("create notification", zap.Error(err), zap.String("user_id", userID.String()), zap.String("slug", slug))
		return nil, err
	}
	n.Push(created)
	return created, nil
}

// Push sends an already stored notification, e.g. one written inside a committed transaction.
func (n *Notifier) Push(created *models.Notification) {
	if n.push == nil || created == nil {
		return
	}
	n.push.SendToUser(created.UserID, EventNotification, created)
}
