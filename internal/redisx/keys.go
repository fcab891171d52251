package redisx

import "time"

const (
	// Cart hash per user: cart:{user_id} -> {product_id: qty}
	KeyCart = "cart:%s"

	// Cached order status for the read path: order_status:{order_id}
	KeyOrderStatus = "order_status:%s"

	// Dedup for event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Single-flight lease for the expiry sweeper.
	KeySweepLease = "lease:expiry-sweep"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLSweepLease  = 45 * time.Second
)
