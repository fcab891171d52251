package httpx

import (
	"errors"
	"net/http"

	"github.com/ordersys/go-fulfillment/internal/fulfill"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, fulfill.ErrNotFound), errors.Is(err, fulfill.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, fulfill.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, fulfill.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, fulfill.ErrInsufficientStock),
		errors.Is(err, fulfill.ErrInvalidState),
		errors.Is(err, fulfill.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, fulfill.ErrOrderExpired):
		return http.StatusGone
	case errors.Is(err, fulfill.ErrPaymentDeclined):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
