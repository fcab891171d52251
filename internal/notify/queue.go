package notify

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ordersys/go-fulfillment/internal/kafka"
)

// Queue implements the notification enqueue contract over kafka. Delivery is
// at-least-once; the engine only promises one enqueue attempt per settlement.
type Queue struct {
	Producer *kafkax.Producer
	Service  string
}

func (q *Queue) Enqueue(ctx context.Context, job string, payload any) error {
	value := envelope(EventPaymentNotice, q.Service, "", payload)
	q.Producer.Publish([]byte(job), value,
		kafkago.Header{Key: "x-job", Value: []byte(job)},
	)
	return nil
}
