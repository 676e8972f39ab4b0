// Package events publishes order lifecycle events to Kafka. The
// publisher is best-effort: a broker outage is logged and never fails
// the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Topic is the single topic all order events go to, keyed by order id
// so one order's events stay in sequence.
const Topic = "order-events"

const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
)

// OrderEvent is the JSON payload of every message on the topic.
type OrderEvent struct {
	EventType  string    `json:"event_type"`
	OrderID    uuid.UUID `json:"order_id"`
	UserID     int       `json:"user_id"`
	Status     string    `json:"status"`
	TotalPrice string    `json:"total_price,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher writes order events. A nil Publisher is valid and drops
// every event, so callers never need to branch on whether Kafka is
// configured.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher connects a writer to the given brokers.
func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish sends one event, logging and swallowing any failure.
func (p *Publisher) Publish(ctx context.Context, event OrderEvent) {
	if p == nil || p.writer == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("encode order event", "event_type", event.EventType, "order_id", event.OrderID, "err", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(event.OrderID.String()),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("publish order event", "event_type", event.EventType, "order_id", event.OrderID, "err", err)
		return
	}
	slog.Info("published order event", "event_type", event.EventType, "order_id", event.OrderID)
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
