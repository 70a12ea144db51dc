package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Durable queues, one per domain event. The routing key is the queue name.
const (
	QueueEventCreated    = "event.created"
	QueueMissionAccepted = "mission.accepted"
)

// EventCreated is published after an event is created.
type EventCreated struct {
	EventID        int64     `json:"event_id"`
	Title          string    `json:"title"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	CreatedBy      uuid.UUID `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// MissionAccepted is published when a user accepts an event for the first time.
type MissionAccepted struct {
	UserID     uuid.UUID `json:"user_id"`
	EventID    int64     `json:"event_id"`
	EventTitle string    `json:"event_title"`
	Status     string    `json:"status"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// Publisher sends domain events.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload any) error
	Close() error
}

// AMQPPublisher publishes JSON messages to RabbitMQ. The connection is opened
// lazily and reopened after it drops.
type AMQPPublisher struct {
	url    string
	logger *zap.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

// NewAMQPPublisher creates a publisher for url. No connection is made until the first Publish.
func NewAMQPPublisher(url string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{url: url, logger: logger, declared: make(map[string]bool)}
}

// Publish marshals payload and publishes it as a persistent message on queue.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", queue, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	if !p.declared[queue] {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("declare %s: %w", queue, err)
		}
		p.declared[queue] = true
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.logger.Info("broker connected")
	return ch, nil
}

// reset drops the current connection; callers hold mu.
func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
	p.declared = make(map[string]bool)
}

// Close closes the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// Nop discards every message. It is used when AMQP_URL is unset.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

func (Nop) Close() error { return nil }
