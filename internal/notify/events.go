package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ordersys/go-fulfillment/internal/fulfill"
	kafkax "github.com/ordersys/go-fulfillment/internal/kafka"
)

const (
	TopicPaymentNotify  = "order.notify.payment"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"
)

const (
	EventPaymentNotice  = "PaymentNotice"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

// Envelope wraps every published message.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPaidPayload struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	TotalCents    int    `json:"total_cents"`
	TransactionID string `json:"transaction_id"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}

// All events of one order share its id as partition key so they keep order.
func partitionKey(orderID string) []byte { return []byte(orderID) }

func envelope(eventType, producer, correlationID string, payload any) []byte {
	return kafkax.MustMarshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	})
}

// Publisher emits committed lifecycle facts, fire-and-forget.
type Publisher struct {
	Paid      *kafkax.Producer
	Cancelled *kafkax.Producer
	Service   string
}

func (p *Publisher) OrderPaid(ctx context.Context, o fulfill.Order, pay fulfill.Payment) {
	if p.Paid == nil {
		return
	}
	value := envelope(EventOrderPaid, p.Service, o.ID, OrderPaidPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		TotalCents:    o.TotalCents,
		TransactionID: pay.TransactionID,
	})
	p.Paid.Publish(partitionKey(o.ID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (p *Publisher) OrderCancelled(ctx context.Context, o fulfill.Order, reason string) {
	if p.Cancelled == nil {
		return
	}
	value := envelope(EventOrderCancelled, p.Service, o.ID, OrderCancelledPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Reason:  reason,
	})
	p.Cancelled.Publish(partitionKey(o.ID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
