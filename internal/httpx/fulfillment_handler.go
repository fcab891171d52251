package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ordersys/go-fulfillment/internal/fulfill"
	"github.com/ordersys/go-fulfillment/internal/redisx"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]fulfill.Product, error)
}

type FulfillmentHandler struct {
	Checkout *fulfill.CheckoutService
	Settle   *fulfill.SettlementService
	Orders   *fulfill.OrderService
	Cart     fulfill.CartStore
	Products ProductLister
	Redis    *redis.Client
	Log      *zap.Logger
}

func (h *FulfillmentHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
	r.Post("/orders/{id}/pay", h.pay)
	r.Patch("/orders/{id}/status", h.setStatus)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

type orderResp struct {
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	Items           []orderItemResp `json:"items"`
	TotalCents      int             `json:"total_cents"`
	Status          fulfill.Status  `json:"status"`
	PaymentDeadline time.Time       `json:"payment_deadline"`
	CreatedAt       time.Time       `json:"created_at"`
}

type orderItemResp struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

func toOrderResp(o fulfill.Order) orderResp {
	items := make([]orderItemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResp{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return orderResp{
		OrderID:         o.ID,
		UserID:          o.UserID,
		Items:           items,
		TotalCents:      o.TotalCents,
		Status:          o.Status,
		PaymentDeadline: o.PaymentDeadline,
		CreatedAt:       o.CreatedAt,
	}
}

type checkoutReq struct {
	UserID string `json:"user_id"`
}

func (h *FulfillmentHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lines, err := h.Cart.Fetch(ctx, req.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}

	order, err := h.Checkout.Checkout(ctx, req.UserID, lines)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusCreated, toOrderResp(order))
}

type payReq struct {
	UserID string `json:"user_id"`
}

type payResp struct {
	Order   orderResp   `json:"order"`
	Payment paymentResp `json:"payment"`
}

type paymentResp struct {
	PaymentID     string                `json:"payment_id"`
	TransactionID string                `json:"transaction_id"`
	AmountCents   int                   `json:"amount_cents"`
	Status        fulfill.PaymentStatus `json:"status"`
	Method        string                `json:"method"`
}

func (h *FulfillmentHandler) pay(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req payReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, payment, err := h.Settle.Pay(ctx, orderID, req.UserID)
	if err != nil {
		h.cacheInvalidate(ctx, orderID)
		writeErr(w, err)
		return
	}

	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusOK, payResp{
		Order: toOrderResp(order),
		Payment: paymentResp{
			PaymentID:     payment.ID,
			TransactionID: payment.TransactionID,
			AmountCents:   payment.AmountCents,
			Status:        payment.Status,
			Method:        payment.Method,
		},
	})
}

type setStatusReq struct {
	Status fulfill.Status `json:"status"`
}

func (h *FulfillmentHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.AdminSetStatus(ctx, orderID, req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusOK, toOrderResp(order))
}

func (h *FulfillmentHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, order.ID, order.Status)
	writeJSON(w, http.StatusOK, toOrderResp(order))
}

func (h *FulfillmentHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListProducts(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// Status cache is read-through sugar for dashboards; the DB stays the truth.
func (h *FulfillmentHandler) cacheStatus(ctx context.Context, orderID string, status fulfill.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]fulfill.Status{"status": status})
	if err := h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Debug("status cache set failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (h *FulfillmentHandler) cacheInvalidate(ctx context.Context, orderID string) {
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}
