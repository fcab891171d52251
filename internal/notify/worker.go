package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ordersys/go-fulfillment/internal/fulfill"
	kafkax "github.com/ordersys/go-fulfillment/internal/kafka"
	"github.com/ordersys/go-fulfillment/internal/redisx"
)

// Mailer is the delivery mechanism behind the queue; the engine does not
// care how a notice reaches the user.
type Mailer interface {
	Send(ctx context.Context, notice fulfill.PaymentNotice) error
}

// LogMailer records the notice instead of sending anything.
type LogMailer struct {
	Log *zap.Logger
}

func (m *LogMailer) Send(ctx context.Context, n fulfill.PaymentNotice) error {
	m.Log.Info("payment notice",
		zap.String("order_id", n.OrderID),
		zap.String("user_id", n.UserID),
		zap.String("user_email", n.UserEmail),
		zap.Int("amount_cents", n.AmountCents))
	return nil
}

// Worker consumes the notification topic and hands each job to the mailer.
type Worker struct {
	Redis  *redis.Client
	Mailer Mailer
	Log    *zap.Logger
}

// HandleNotice is wired as the consumer handler.
func (w *Worker) HandleNotice(ctx context.Context, m kafkago.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != EventPaymentNotice {
		return nil
	}

	// At-least-once delivery: dedup on event id before sending.
	dkey := fmt.Sprintf(redisx.KeyDedup, "notifier", env.EventID)
	if exists, _ := redisx.Exists(ctx, w.Redis, dkey); exists {
		return nil
	}

	notice, err := kafkax.UnwrapPayload[fulfill.PaymentNotice](env.Payload)
	if err != nil {
		return err
	}
	if err := w.Mailer.Send(ctx, notice); err != nil {
		return err
	}

	_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
