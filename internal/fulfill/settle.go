package fulfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPaymentDeclined is returned when the gateway rejects the charge; the
// order stays pending and may be retried until its deadline.
var ErrPaymentDeclined = errors.New("payment declined")

type SettlementStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOrderForUpdate(ctx context.Context, orderID string) (Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, from, to Status) error
	ReleaseStock(ctx context.Context, productID string, qty int) error
	ConfirmStock(ctx context.Context, productID string, qty int) error
	CreatePayment(ctx context.Context, p Payment) error
	UserEmail(ctx context.Context, userID string) (string, error)
}

// Gateway is the external payment processor; the outcome is an opaque
// success/failure signal.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amountCents int) (Charge, error)
}

type Charge struct {
	TransactionID string
	Method        string
}

// SandboxGateway authorizes every charge. Stands in for a real processor.
type SandboxGateway struct{}

func (SandboxGateway) Charge(ctx context.Context, orderID string, amountCents int) (Charge, error) {
	return Charge{TransactionID: uuid.NewString(), Method: "card"}, nil
}

// NotificationQueue is the fire-and-forget job queue collaborator.
type NotificationQueue interface {
	Enqueue(ctx context.Context, job string, payload any) error
}

const JobPaymentSucceeded = "payment.succeeded"

// PaymentNotice is the payload enqueued once per successful settlement.
type PaymentNotice struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	UserEmail   string `json:"user_email"`
	AmountCents int    `json:"amount_cents"`
}

// EventPublisher receives lifecycle facts after they are committed.
// Implementations must not block settlement.
type EventPublisher interface {
	OrderPaid(ctx context.Context, o Order, p Payment)
	OrderCancelled(ctx context.Context, o Order, reason string)
}

// NopEvents discards all lifecycle events.
type NopEvents struct{}

func (NopEvents) OrderPaid(context.Context, Order, Payment)     {}
func (NopEvents) OrderCancelled(context.Context, Order, string) {}

type SettlementService struct {
	store   SettlementStore
	gateway Gateway
	queue   NotificationQueue
	events  EventPublisher
	clock   Clock
	log     *zap.Logger
}

func NewSettlementService(store SettlementStore, gw Gateway, queue NotificationQueue, events EventPublisher, clk Clock, log *zap.Logger) *SettlementService {
	if events == nil {
		events = NopEvents{}
	}
	return &SettlementService{store: store, gateway: gw, queue: queue, events: events, clock: clk, log: log}
}

// Pay settles a pending order. The order row stays locked for the whole
// transaction, so the expiry sweep cannot cancel a settlement in flight:
// whichever side commits the PENDING_PAYMENT transition first wins, the
// other observes the post-state and fails.
func (s *SettlementService) Pay(ctx context.Context, orderID, callerUserID string) (Order, Payment, error) {
	now := s.clock.Now()

	var (
		order    Order
		payment  Payment
		expired  bool
		declined bool
	)

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.store.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != callerUserID {
			return ErrForbidden
		}
		if o.Status != StatusPendingPayment {
			return ErrInvalidState
		}

		// Lazy expiry: this call performs the cancellation itself
		// rather than silently no-oping.
		if o.Expired(now) {
			if err := s.store.UpdateOrderStatus(txCtx, o.ID, StatusPendingPayment, StatusCancelled); err != nil {
				return err
			}
			for _, it := range o.Items {
				if err := s.store.ReleaseStock(txCtx, it.ProductID, it.Qty); err != nil {
					return fmt.Errorf("release %s x%d: %w", it.ProductID, it.Qty, err)
				}
			}
			o.Status = StatusCancelled
			order = o
			expired = true
			return nil
		}

		ch, err := s.gateway.Charge(txCtx, o.ID, o.TotalCents)
		if err != nil {
			payment = Payment{
				ID:            uuid.NewString(),
				OrderID:       o.ID,
				TransactionID: uuid.NewString(),
				AmountCents:   o.TotalCents,
				Status:        PaymentFailed,
				Method:        ch.Method,
				CreatedAt:     now,
			}
			if err := s.store.CreatePayment(txCtx, payment); err != nil {
				return err
			}
			declined = true
			return nil
		}

		payment = Payment{
			ID:            uuid.NewString(),
			OrderID:       o.ID,
			TransactionID: ch.TransactionID,
			AmountCents:   o.TotalCents,
			Status:        PaymentSuccess,
			Method:        ch.Method,
			CreatedAt:     now,
		}
		if err := s.store.CreatePayment(txCtx, payment); err != nil {
			return err
		}
		if err := s.store.UpdateOrderStatus(txCtx, o.ID, StatusPendingPayment, StatusPaid); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.store.ConfirmStock(txCtx, it.ProductID, it.Qty); err != nil {
				return fmt.Errorf("confirm %s x%d: %w", it.ProductID, it.Qty, err)
			}
		}
		o.Status = StatusPaid
		order = o
		return nil
	})
	if err != nil {
		return Order{}, Payment{}, err
	}
	if expired {
		s.events.OrderCancelled(ctx, order, "payment window expired")
		return Order{}, Payment{}, ErrOrderExpired
	}
	if declined {
		return Order{}, Payment{}, ErrPaymentDeclined
	}

	s.events.OrderPaid(ctx, order, payment)
	s.enqueueNotice(ctx, order)

	return order, payment, nil
}

// enqueueNotice runs after the settlement commit; a queue failure is logged
// and never unwinds the payment.
func (s *SettlementService) enqueueNotice(ctx context.Context, o Order) {
	email, err := s.store.UserEmail(ctx, o.UserID)
	if err != nil {
		s.log.Warn("user email lookup failed",
			zap.String("user_id", o.UserID),
			zap.Error(err))
	}
	notice := PaymentNotice{
		OrderID:     o.ID,
		UserID:      o.UserID,
		UserEmail:   email,
		AmountCents: o.TotalCents,
	}
	if err := s.queue.Enqueue(ctx, JobPaymentSucceeded, notice); err != nil {
		s.log.Error("notification enqueue failed",
			zap.String("order_id", o.ID),
			zap.Error(err))
	}
}
