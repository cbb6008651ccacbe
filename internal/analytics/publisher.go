// Package analytics publishes click events to the analytics queue.
// Publishing is strictly best-effort: the redirect path must keep
// working when the broker is down or not configured at all.
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ClickEvent is emitted once per resolved redirect.
type ClickEvent struct {
	LinkID      uuid.UUID `json:"link_id"`
	Slug        string    `json:"slug"`
	AccessCount int64     `json:"access_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventPublisher is what the link service needs from the queue side.
type EventPublisher interface {
	PublishClick(ctx context.Context, ev ClickEvent) error
	Close() error
}

// QueuePublisher publishes click events to a durable RabbitMQ queue
// consumed by the analytics worker.
type QueuePublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

var _ EventPublisher = (*QueuePublisher)(nil)

// NewQueuePublisher connects to the broker and declares the queue.
func NewQueuePublisher(url, queue string) (*QueuePublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &QueuePublisher{conn: conn, ch: ch, queue: queue}, nil
}

// PublishClick sends one event to the click queue.
func (p *QueuePublisher) PublishClick(ctx context.Context, ev ClickEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
}

// Close releases the channel and connection.
func (p *QueuePublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
