package fulfill

import (
	"context"
	"fmt"
)

type OrderStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, from, to Status) error
	ReleaseStock(ctx context.Context, productID string, qty int) error
}

// OrderService covers reads and the admin status override.
type OrderService struct {
	store OrderStore
}

func NewOrderService(store OrderStore) *OrderService {
	return &OrderService{store: store}
}

func (s *OrderService) Get(ctx context.Context, orderID string) (Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// AdminSetStatus drives an order through the state machine on behalf of an
// operator. A cancellation of a still-pending order carries the stock release
// in the same transaction; cancelling a paid order leaves the confirmed
// deduction in place.
func (s *OrderService) AdminSetStatus(ctx context.Context, orderID string, next Status) (Order, error) {
	if !ValidStatus(next) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	var order Order
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.store.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
		}
		if err := s.store.UpdateOrderStatus(txCtx, o.ID, o.Status, next); err != nil {
			return err
		}
		if o.Status == StatusPendingPayment && next == StatusCancelled {
			for _, it := range o.Items {
				if err := s.store.ReleaseStock(txCtx, it.ProductID, it.Qty); err != nil {
					return fmt.Errorf("release %s x%d: %w", it.ProductID, it.Qty, err)
				}
			}
		}
		o.Status = next
		order = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}
