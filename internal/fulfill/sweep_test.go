package fulfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureEvents struct {
	mu        sync.Mutex
	cancelled []string
	paid      []string
}

func (c *captureEvents) OrderPaid(ctx context.Context, o Order, p Payment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paid = append(c.paid, o.ID)
}

func (c *captureEvents) OrderCancelled(ctx context.Context, o Order, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, o.ID)
}

func TestSweepCancelsOnlyExpiredPending(t *testing.T) {
	now := mustTime(t, "2026-08-01T10:00:00Z")
	store := newMemStore()
	store.addProduct("p1", 1000, 10)
	seedPendingOrder(t, store, "expired", "u1", now.Add(-time.Minute),
		OrderItem{ProductID: "p1", Qty: 2, PriceCents: 1000})
	seedPendingOrder(t, store, "fresh", "u2", now.Add(10*time.Minute),
		OrderItem{ProductID: "p1", Qty: 1, PriceCents: 1000})

	events := &captureEvents{}
	sweeper := NewSweeper(store, events, FixedClock(now), zap.NewNop(), 4)

	n, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, StatusCancelled, store.order("expired").Status)
	assert.Equal(t, StatusPendingPayment, store.order("fresh").Status)
	assert.Equal(t, []string{"expired"}, events.cancelled)

	// only the expired order's reservation went back
	p := store.product("p1")
	assert.Equal(t, 9, p.StockAvailable)
	assert.Equal(t, 1, p.StockReserved)
	assert.Equal(t, 10, p.StockTotal)
}

func TestSweepEmptyBatch(t *testing.T) {
	store := newMemStore()
	sweeper := NewSweeper(store, nil, FixedClock(mustTime(t, "2026-08-01T10:00:00Z")), zap.NewNop(), 4)

	n, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepIsolatesPerOrderFailures(t *testing.T) {
	now := mustTime(t, "2026-08-01T10:00:00Z")
	store := newMemStore()
	store.addProduct("good", 1000, 10)
	store.addProduct("bad", 1000, 10)
	seedPendingOrder(t, store, "o-good", "u1", now.Add(-time.Minute),
		OrderItem{ProductID: "good", Qty: 1, PriceCents: 1000})
	seedPendingOrder(t, store, "o-bad", "u2", now.Add(-time.Minute),
		OrderItem{ProductID: "bad", Qty: 1, PriceCents: 1000})
	store.releaseErr["bad"] = errors.New("boom")

	sweeper := NewSweeper(store, nil, FixedClock(now), zap.NewNop(), 1)

	n, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// the good order is done, the bad one rolled back whole
	assert.Equal(t, StatusCancelled, store.order("o-good").Status)
	assert.Equal(t, StatusPendingPayment, store.order("o-bad").Status)
	bad := store.product("bad")
	assert.Equal(t, 1, bad.StockReserved)
	assert.Equal(t, 9, bad.StockAvailable)
}

func TestSweepReleaseRestoresPreReservationCounters(t *testing.T) {
	now := mustTime(t, "2026-08-01T10:00:00Z")
	store := newMemStore()
	store.addProduct("p1", 700, 7)
	before := store.product("p1")
	seedPendingOrder(t, store, "o1", "u1", now.Add(-time.Second),
		OrderItem{ProductID: "p1", Qty: 4, PriceCents: 700})

	sweeper := NewSweeper(store, nil, FixedClock(now), zap.NewNop(), 2)
	n, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, before, store.product("p1"))
}

func TestSweepSecondRunFindsNothing(t *testing.T) {
	now := mustTime(t, "2026-08-01T10:00:00Z")
	store := newMemStore()
	store.addProduct("p1", 1000, 10)
	seedPendingOrder(t, store, "o1", "u1", now.Add(-time.Minute),
		OrderItem{ProductID: "p1", Qty: 1, PriceCents: 1000})

	sweeper := NewSweeper(store, nil, FixedClock(now), zap.NewNop(), 2)

	n, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// no double release
	p := store.product("p1")
	assert.Equal(t, 10, p.StockAvailable)
	assert.Equal(t, 0, p.StockReserved)
}
