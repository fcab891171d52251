package fulfill

import "time"

type Product struct {
	ID             string
	Name           string
	PriceCents     int
	StockTotal     int
	StockAvailable int
	StockReserved  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	TotalCents      int
	Status          Status
	PaymentDeadline time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Expired reports whether a pending order has outlived its payment window.
// Expiry is derived, never stored: it becomes real only through an explicit
// CANCELLED transition that releases the reservation.
func (o Order) Expired(now time.Time) bool {
	return o.Status == StatusPendingPayment && now.After(o.PaymentDeadline)
}

// OrderItem snapshots price at purchase time; it never tracks the live catalog.
type OrderItem struct {
	ProductID  string
	Qty        int
	PriceCents int
}

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

type Payment struct {
	ID            string
	OrderID       string
	TransactionID string
	AmountCents   int
	Status        PaymentStatus
	Method        string
	CreatedAt     time.Time
}

// CartLine is what the external cart collaborator hands to checkout.
type CartLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}
