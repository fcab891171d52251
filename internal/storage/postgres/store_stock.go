package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ordersys/go-fulfillment/internal/fulfill"
)

func (s *Store) GetProduct(ctx context.Context, productID string) (fulfill.Product, error) {
	const query = `
SELECT id, name, price_cents, stock_total, stock_available, stock_reserved, created_at, updated_at
FROM products WHERE id = $1`

	var p fulfill.Product
	err := s.conn(ctx).QueryRow(ctx, query, productID).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.StockTotal, &p.StockAvailable, &p.StockReserved, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fulfill.Product{}, fulfill.ErrProductNotFound
		}
		return fulfill.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]fulfill.Product, error) {
	const query = `
SELECT id, name, price_cents, stock_total, stock_available, stock_reserved, created_at, updated_at
FROM products ORDER BY name`

	rows, err := s.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []fulfill.Product
	for rows.Next() {
		var p fulfill.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.StockTotal, &p.StockAvailable, &p.StockReserved, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReserveStock moves qty from available to reserved in one guarded update.
// A single conditional write is the whole read-modify-write: two concurrent
// reservations that together exceed the available pool cannot both pass the
// guard.
func (s *Store) ReserveStock(ctx context.Context, productID string, qty int) error {
	const query = `
UPDATE products
SET stock_available = stock_available - $2,
    stock_reserved  = stock_reserved + $2,
    updated_at      = now()
WHERE id = $1 AND stock_available >= $2`

	ct, err := s.conn(ctx).Exec(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fulfill.ErrInsufficientStock
	}
	return nil
}

// ReleaseStock returns qty from reserved to available.
func (s *Store) ReleaseStock(ctx context.Context, productID string, qty int) error {
	const query = `
UPDATE products
SET stock_reserved  = stock_reserved - $2,
    stock_available = stock_available + $2,
    updated_at      = now()
WHERE id = $1 AND stock_reserved >= $2`

	ct, err := s.conn(ctx).Exec(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fulfill.ErrInvalidState
	}
	return nil
}

// ConfirmStock converts a reservation into a permanent deduction: the units
// leave both reserved and total, the available pool is untouched.
func (s *Store) ConfirmStock(ctx context.Context, productID string, qty int) error {
	const query = `
UPDATE products
SET stock_reserved = stock_reserved - $2,
    stock_total    = stock_total - $2,
    updated_at     = now()
WHERE id = $1 AND stock_reserved >= $2`

	ct, err := s.conn(ctx).Exec(ctx, query, productID, qty)
	if err != nil {
		return fmt.Errorf("confirm stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fulfill.ErrInvalidState
	}
	return nil
}
