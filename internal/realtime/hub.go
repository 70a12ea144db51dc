package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
	// sendBuffer is the per-connection queue; messages are dropped when it is full.
	sendBuffer = 64
)

// Hub maintains user_id -> set of connections. A user may hold several tabs open.
// With Redis configured, deliveries go through pub/sub so every instance reaches
// its own connections of the user.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per user
	pending  map[uuid.UUID]bool   // subscription in flight
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes user events for cross-instance delivery.
type RedisPublisher interface {
	PublishUserEvent(userID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to user channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeUser(userID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		pending:  make(map[uuid.UUID]bool),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a connection to its user's room. A user without a live Redis
// subscription gets one; the round trip to Redis happens outside the hub lock.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.UserID] == nil {
		h.rooms[c.UserID] = make(map[string]*Client)
	}
	h.rooms[c.UserID][c.ID] = c
	subscribe := h.redisSub != nil && h.subs[c.UserID] == nil && !h.pending[c.UserID]
	if subscribe {
		h.pending[c.UserID] = true
	}
	h.mu.Unlock()

	if subscribe {
		h.subscribe(c.UserID)
	}
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

func (h *Hub) subscribe(userID uuid.UUID) {
	cancel, err := h.redisSub.SubscribeUser(userID, func(event string, payload []byte) {
		h.deliver(userID, event, json.RawMessage(payload))
	})

	h.mu.Lock()
	delete(h.pending, userID)
	if err != nil {
		h.mu.Unlock()
		// Next Register retries; SendToUser delivers locally meanwhile.
		h.logger.Warn("subscribe user channel", zap.Error(err), zap.String("user_id", userID.String()))
		return
	}
	if len(h.rooms[userID]) == 0 {
		// every connection left while subscribing
		h.mu.Unlock()
		cancel()
		return
	}
	h.subs[userID] = cancel
	h.mu.Unlock()
}

// Unregister removes a connection. The last one of a user cancels its Redis subscription.
func (h *Hub) Unregister(c *Client) {
	var cancel func()
	h.mu.Lock()
	if m, ok := h.rooms[c.UserID]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.UserID)
			cancel = h.subs[c.UserID]
			delete(h.subs, c.UserID)
		}
	}
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("user_id", c.UserID.String()))
}

// SendToUser delivers event to every connection of userID, on every instance.
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal realtime payload", zap.Error(err), zap.String("event", event))
		return
	}
	if h.redis != nil {
		err := h.redis.PublishUserEvent(userID, event, data)
		if err == nil && h.subscribed(userID) {
			// The subscription callback performs the local delivery.
			return
		}
		if err != nil {
			h.logger.Warn("publish user event", zap.Error(err), zap.String("user_id", userID.String()))
		}
	}
	h.deliver(userID, event, data)
}

// subscribed reports whether local connections of userID receive Redis deliveries.
func (h *Hub) subscribed(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs[userID] != nil
}

// deliver sends to the local connections of userID only.
func (h *Hub) deliver(userID uuid.UUID, event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[userID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Connections returns the number of local connections of userID.
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}
