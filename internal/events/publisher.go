// Package events publishes relay lifecycle events to RabbitMQ when a
// broker is configured. Publishing is fire-and-forget: failures are
// logged and never surfaced to users.
package events

import (
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Event types published to the queue.
const (
	TypeRelayCreated = "relay.created"
	TypeGuestBlocked = "guest.blocked"
	TypeAppeal       = "guest.appeal"
)

// Event is the JSON payload placed on the queue.
type Event struct {
	Type      string    `json:"type"`
	GuestID   string    `json:"guest_id"`
	RelayID   string    `json:"relay_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher owns the broker connection. A nil *Publisher is valid and
// drops all events, so the broker stays optional.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
}

// NewPublisher connects to the broker and declares the durable queue.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	log.Info().Str("queue", queue).Msg("RabbitMQ event publisher connected")
	return &Publisher{conn: conn, channel: channel, queue: queue}, nil
}

// Close shuts down the broker connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Publish places an event on the queue, best-effort.
func (p *Publisher) Publish(event Event) {
	if p == nil || p.channel == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("Failed to marshal event")
		return
	}
	err = p.channel.Publish("", p.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         data,
	})
	if err != nil {
		log.Warn().Err(err).Str("type", event.Type).Msg("Failed to publish event")
	}
}
