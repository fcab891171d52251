package cart

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ordersys/go-fulfillment/internal/fulfill"
	"github.com/ordersys/go-fulfillment/internal/redisx"
)

// Store keeps each user's cart as a redis hash of product id -> qty.
// Cart CRUD itself lives with the storefront; the engine only fetches
// and clears.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Fetch(ctx context.Context, userID string) ([]fulfill.CartLine, error) {
	m, err := s.rdb.HGetAll(ctx, fmt.Sprintf(redisx.KeyCart, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}

	lines := make([]fulfill.CartLine, 0, len(m))
	for productID, raw := range m {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("cart qty for %s: %w", productID, err)
		}
		lines = append(lines, fulfill.CartLine{ProductID: productID, Qty: qty})
	}
	// HGetAll order is not stable; keep the sequence deterministic.
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(redisx.KeyCart, userID)).Err()
}
