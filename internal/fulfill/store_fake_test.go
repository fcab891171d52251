package fulfill

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory stand-in for the postgres store. WithTx serializes
// whole transactions under one mutex and rolls the state back when fn fails,
// which mirrors how the real store behaves per row.
type memStore struct {
	mu       sync.Mutex
	products map[string]Product
	orders   map[string]Order
	payments []Payment
	emails   map[string]string

	// releaseErr makes ReleaseStock fail for a product id, to exercise
	// per-order error isolation in the sweep.
	releaseErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		products:   make(map[string]Product),
		orders:     make(map[string]Order),
		emails:     make(map[string]string),
		releaseErr: make(map[string]error),
	}
}

type fakeTxKey struct{}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapProducts := make(map[string]Product, len(s.products))
	for k, v := range s.products {
		snapProducts[k] = v
	}
	snapOrders := make(map[string]Order, len(s.orders))
	for k, v := range s.orders {
		snapOrders[k] = v
	}
	snapPayments := append([]Payment(nil), s.payments...)

	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		s.products = snapProducts
		s.orders = snapOrders
		s.payments = snapPayments
		return err
	}
	return nil
}

// lock is a no-op inside a transaction, where WithTx already holds the mutex.
func (s *memStore) lock(ctx context.Context) func() {
	if ctx.Value(fakeTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *memStore) addProduct(id string, priceCents, stock int) {
	s.products[id] = Product{
		ID:             id,
		Name:           id,
		PriceCents:     priceCents,
		StockTotal:     stock,
		StockAvailable: stock,
	}
}

func (s *memStore) product(id string) Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *memStore) order(id string) Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) GetProduct(ctx context.Context, productID string) (Product, error) {
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (s *memStore) ReserveStock(ctx context.Context, productID string, qty int) error {
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok || p.StockAvailable < qty {
		return ErrInsufficientStock
	}
	p.StockAvailable -= qty
	p.StockReserved += qty
	s.products[productID] = p
	return nil
}

func (s *memStore) ReleaseStock(ctx context.Context, productID string, qty int) error {
	defer s.lock(ctx)()
	if err := s.releaseErr[productID]; err != nil {
		return err
	}
	p, ok := s.products[productID]
	if !ok || p.StockReserved < qty {
		return ErrInvalidState
	}
	p.StockReserved -= qty
	p.StockAvailable += qty
	s.products[productID] = p
	return nil
}

func (s *memStore) ConfirmStock(ctx context.Context, productID string, qty int) error {
	defer s.lock(ctx)()
	p, ok := s.products[productID]
	if !ok || p.StockReserved < qty {
		return ErrInvalidState
	}
	p.StockReserved -= qty
	p.StockTotal -= qty
	s.products[productID] = p
	return nil
}

func (s *memStore) CreateOrder(ctx context.Context, o Order) error {
	defer s.lock(ctx)()
	s.orders[o.ID] = o
	return nil
}

func (s *memStore) GetOrder(ctx context.Context, orderID string) (Order, error) {
	defer s.lock(ctx)()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *memStore) GetOrderForUpdate(ctx context.Context, orderID string) (Order, error) {
	return s.GetOrder(ctx, orderID)
}

func (s *memStore) UpdateOrderStatus(ctx context.Context, orderID string, from, to Status) error {
	defer s.lock(ctx)()
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return ErrInvalidTransition
	}
	o.Status = to
	s.orders[orderID] = o
	return nil
}

func (s *memStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error) {
	defer s.lock(ctx)()
	var ids []string
	for id, o := range s.orders {
		if o.Status == StatusPendingPayment && o.PaymentDeadline.Before(now) {
			ids = append(ids, id)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

func (s *memStore) CreatePayment(ctx context.Context, p Payment) error {
	defer s.lock(ctx)()
	s.payments = append(s.payments, p)
	return nil
}

func (s *memStore) UserEmail(ctx context.Context, userID string) (string, error) {
	defer s.lock(ctx)()
	email, ok := s.emails[userID]
	if !ok {
		return "", ErrNotFound
	}
	return email, nil
}

// memCart is a CartStore that records clears.
type memCart struct {
	mu      sync.Mutex
	lines   map[string][]CartLine
	cleared map[string]int
}

func newMemCart() *memCart {
	return &memCart{lines: make(map[string][]CartLine), cleared: make(map[string]int)}
}

func (c *memCart) Fetch(ctx context.Context, userID string) ([]CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[userID], nil
}

func (c *memCart) Clear(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines, userID)
	c.cleared[userID]++
	return nil
}

// memQueue captures enqueued notification jobs.
type memQueue struct {
	mu   sync.Mutex
	jobs []string
	paid []PaymentNotice
}

func (q *memQueue) Enqueue(ctx context.Context, job string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	if n, ok := payload.(PaymentNotice); ok {
		q.paid = append(q.paid, n)
	}
	return nil
}
