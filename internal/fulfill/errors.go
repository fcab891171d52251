package fulfill

import "errors"

var (
	ErrNotFound          = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrForbidden         = errors.New("order does not belong to caller")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("operation not valid for current order status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderExpired      = errors.New("order payment window expired")
)
