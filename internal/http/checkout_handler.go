package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

// OrderPlacer is implemented by *checkout.Service.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, session string, details checkout.Details) (domain.Order, error)
	Order(ctx context.Context, session, id string) (domain.Order, error)
	Orders(ctx context.Context, session string) ([]domain.Order, error)
	LastOrder(ctx context.Context, session string) (domain.Order, error)
}

type CheckoutHandler struct {
	placer  OrderPlacer
	timeout time.Duration
	log     *slog.Logger
}

func NewCheckoutHandler(placer OrderPlacer, timeout time.Duration, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		placer:  placer,
		timeout: timeout,
		log:     log,
	}
}

type CheckoutResponse struct {
	OrderID     string        `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	Totals      domain.Totals `json:"totals"`
	Message     string        `json:"message"`
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var details checkout.Details
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if details.Billing.Email == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "billing email is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.placer.PlaceOrder(ctx, getSessionFromContext(r.Context()), details)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Totals:      order.Totals,
		Message:     "Order placed successfully",
	})
}

type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// GetOrders handles GET /api/v1/orders
func (h *CheckoutHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.placer.Orders(ctx, getSessionFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: list})
}

// GetLastOrder handles GET /api/v1/orders/last
func (h *CheckoutHandler) GetLastOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.placer.LastOrder(ctx, getSessionFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.placer.Order(ctx, getSessionFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
