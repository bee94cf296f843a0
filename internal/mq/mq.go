package mq

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Publisher defines a minimal interface for publishing workflow events.
// Publishing is best-effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Consumer defines a minimal interface for subscribing to queue messages.
type Consumer interface {
	Consume(handler func(amqp091.Delivery)) error
	Close() error
}

// Event is the envelope every published message shares.
type Event struct {
	ID          string    `json:"id"`
	ComplaintID uint      `json:"complaintId"`
	Kind        string    `json:"kind"`
	OccurredAt  time.Time `json:"occurredAt"`
	Payload     any       `json:"payload,omitempty"`
}

// NewEvent builds an envelope with a fresh id and UTC timestamp.
func NewEvent(complaintID uint, kind string, payload any) Event {
	return Event{
		ID:          uuid.New().String(),
		ComplaintID: complaintID,
		Kind:        kind,
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
}

// RabbitPublisher publishes JSON events to a RabbitMQ topic exchange.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewRabbitPublisher creates a publisher connecting to RabbitMQ.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish serializes the payload to JSON and sends it to the exchange.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Close terminates the connection.
func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		log.Printf("close channel: %v", err)
	}
	return p.conn.Close()
}

// RabbitConsumer consumes notification events from the delivery queue and
// acknowledges on success.
type RabbitConsumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
}

// NewRabbitConsumer sets up the queue bound to notification events and
// returns a consumer.
func NewRabbitConsumer(url, exchange, queue string) (*RabbitConsumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(q.Name, "notification.*", exchange, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &RabbitConsumer{conn: conn, channel: ch, queue: q.Name}, nil
}

// Consume begins delivering messages to handler.
func (c *RabbitConsumer) Consume(handler func(amqp091.Delivery)) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	go func() {
		for msg := range deliveries {
			handler(msg)
		}
	}()
	return nil
}

// Close closes the consumer resources.
func (c *RabbitConsumer) Close() error {
	if c == nil {
		return nil
	}
	if err := c.channel.Close(); err != nil {
		log.Printf("close channel: %v", err)
	}
	return c.conn.Close()
}
