package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ordersys/go-fulfillment/internal/fulfill"
)

func (s *Store) CreateOrder(ctx context.Context, o fulfill.Order) error {
	q := s.conn(ctx)

	_, err := q.Exec(ctx, `
INSERT INTO orders (id, user_id, status, total_cents, payment_deadline, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		o.ID, o.UserID, o.Status, o.TotalCents, o.PaymentDeadline, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err := q.Exec(ctx, `
INSERT INTO order_items (order_id, product_id, qty, price_cents)
VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Qty, it.PriceCents)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (fulfill.Order, error) {
	return s.getOrder(ctx, orderID, false)
}

func (s *Store) GetOrderForUpdate(ctx context.Context, orderID string) (fulfill.Order, error) {
	return s.getOrder(ctx, orderID, true)
}

func (s *Store) getOrder(ctx context.Context, orderID string, forUpdate bool) (fulfill.Order, error) {
	q := s.conn(ctx)

	query := `
SELECT id, user_id, status, total_cents, payment_deadline, created_at, updated_at
FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var o fulfill.Order
	err := q.QueryRow(ctx, query, orderID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalCents, &o.PaymentDeadline, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fulfill.Order{}, fulfill.ErrNotFound
		}
		return fulfill.Order{}, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT product_id, qty, price_cents
FROM order_items WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return fulfill.Order{}, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it fulfill.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Qty, &it.PriceCents); err != nil {
			return fulfill.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// UpdateOrderStatus is the single serialization point for every status
// change: the guard on the expected current status makes two producers of
// the same transition commute into one winner and one failure.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, from, to fulfill.Status) error {
	const query = `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`

	ct, err := s.conn(ctx).Exec(ctx, query, orderID, from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fulfill.ErrInvalidTransition
	}
	return nil
}

func (s *Store) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const query = `
SELECT id FROM orders
WHERE status = 'PENDING_PAYMENT' AND payment_deadline < $1
ORDER BY payment_deadline
LIMIT $2`

	rows, err := s.conn(ctx).Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CreatePayment(ctx context.Context, p fulfill.Payment) error {
	const query = `
INSERT INTO payments (id, order_id, transaction_id, amount_cents, status, method, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.conn(ctx).Exec(ctx, query,
		p.ID, p.OrderID, p.TransactionID, p.AmountCents, p.Status, p.Method, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("duplicate payment for order %s: %w", p.OrderID, fulfill.ErrInvalidState)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Store) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.conn(ctx).QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fulfill.ErrNotFound
		}
		return "", fmt.Errorf("user email: %w", err)
	}
	return email, nil
}
