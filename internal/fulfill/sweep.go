package fulfill

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SweepStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, from, to Status) error
	ReleaseStock(ctx context.Context, productID string, qty int) error
}

const defaultSweepBatch = 500

// Sweeper cancels pending orders whose payment window has elapsed and
// returns their reservations to the available pool.
type Sweeper struct {
	store   SweepStore
	events  EventPublisher
	clock   Clock
	log     *zap.Logger
	workers int
	batch   int
}

func NewSweeper(store SweepStore, events EventPublisher, clk Clock, log *zap.Logger, workers int) *Sweeper {
	if workers < 1 {
		workers = 1
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Sweeper{store: store, events: events, clock: clk, log: log, workers: workers, batch: defaultSweepBatch}
}

// Run performs one sweep and returns the number of orders cancelled.
// Each order is handled in its own transaction; one bad order never blocks
// the rest of the batch.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	now := s.clock.Now()

	ids, err := s.store.ListExpiredPending(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var cancelled atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			order, err := s.cancelExpired(ctx, id, now)
			switch {
			case err == nil:
				cancelled.Add(1)
				s.events.OrderCancelled(ctx, order, "payment window expired")
			case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotFound):
				// a concurrent pay or an earlier sweep already resolved it
			default:
				s.log.Error("expiry cancellation failed",
					zap.String("order_id", id),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(cancelled.Load())
	if n > 0 {
		s.log.Info("expiry sweep done",
			zap.Int("scanned", len(ids)),
			zap.Int("cancelled", n))
	}
	return n, nil
}

func (s *Sweeper) cancelExpired(ctx context.Context, orderID string, now time.Time) (Order, error) {
	var order Order
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.store.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		// Re-check under the lock: the id scan ran outside this tx.
		if !o.Expired(now) {
			return ErrInvalidState
		}
		if err := s.store.UpdateOrderStatus(txCtx, o.ID, StatusPendingPayment, StatusCancelled); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.store.ReleaseStock(txCtx, it.ProductID, it.Qty); err != nil {
				return err
			}
		}
		o.Status = StatusCancelled
		order = o
		return nil
	})
	return order, err
}
