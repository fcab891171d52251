package fulfill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutStore is the slice of storage the checkout orchestrator needs.
// Every call inside WithTx runs in one transaction; reservations and the
// order insert either all commit or all roll back.
type CheckoutStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProduct(ctx context.Context, productID string) (Product, error)
	ReserveStock(ctx context.Context, productID string, qty int) error
	CreateOrder(ctx context.Context, order Order) error
}

// CartStore is the external cart collaborator.
type CartStore interface {
	Fetch(ctx context.Context, userID string) ([]CartLine, error)
	Clear(ctx context.Context, userID string) error
}

const defaultPaymentWindow = 15 * time.Minute

type CheckoutService struct {
	store  CheckoutStore
	cart   CartStore
	clock  Clock
	log    *zap.Logger
	window time.Duration
}

type CheckoutOption func(*CheckoutService)

// WithPaymentWindow overrides the default 15-minute payment deadline.
func WithPaymentWindow(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) {
		if d > 0 {
			s.window = d
		}
	}
}

func NewCheckoutService(store CheckoutStore, cart CartStore, clk Clock, log *zap.Logger, opts ...CheckoutOption) *CheckoutService {
	svc := &CheckoutService{
		store:  store,
		cart:   cart,
		clock:  clk,
		log:    log,
		window: defaultPaymentWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Checkout reserves stock for every cart line and creates a pending order in
// one transaction. Any line failing leaves no reservation from any other line
// applied. On success the user's cart is cleared best-effort.
func (s *CheckoutService) Checkout(ctx context.Context, userID string, lines []CartLine) (Order, error) {
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}

	now := s.clock.Now()
	order := Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Status:          StatusPendingPayment,
		PaymentDeadline: now.Add(s.window),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		items := make([]OrderItem, 0, len(lines))
		total := 0
		for _, ln := range lines {
			if ln.Qty < 1 {
				return fmt.Errorf("invalid qty %d for product %s", ln.Qty, ln.ProductID)
			}
			p, err := s.store.GetProduct(txCtx, ln.ProductID)
			if err != nil {
				return err
			}
			if err := s.store.ReserveStock(txCtx, ln.ProductID, ln.Qty); err != nil {
				return fmt.Errorf("reserve %s x%d: %w", ln.ProductID, ln.Qty, err)
			}
			items = append(items, OrderItem{ProductID: p.ID, Qty: ln.Qty, PriceCents: p.PriceCents})
			total += ln.Qty * p.PriceCents
		}
		order.Items = items
		order.TotalCents = total
		return s.store.CreateOrder(txCtx, order)
	})
	if err != nil {
		return Order{}, err
	}

	// The cart lives outside the storage transaction; clearing is
	// best-effort but never skipped on success.
	if err := s.cart.Clear(ctx, userID); err != nil {
		s.log.Warn("cart clear failed after checkout",
			zap.String("user_id", userID),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	return order, nil
}
