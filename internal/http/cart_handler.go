package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/go-chi/chi/v5"
)

const maxQuantity = 99

// SessionStores resolves the store of a session. *cart.Manager implements it.
type SessionStores interface {
	Session(ctx context.Context, id string) (*cart.Store, error)
}

type CartHandler struct {
	sessions SessionStores
	timeout  time.Duration
	log      *slog.Logger
}

func NewCartHandler(sessions SessionStores, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		timeout:  timeout,
		log:      log,
	}
}

type AddItemRequest struct {
	ProductID      string `json:"productId"`
	Variant        string `json:"variant"`
	Title          string `json:"title"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compareAtPrice"`
	Image          string `json:"image"`
	Handle         string `json:"handle"`
	Quantity       int    `json:"quantity"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ApplyCouponRequest struct {
	Code string `json:"code"`
}

type CartResponse struct {
	Cart          []domain.CartLineItem `json:"cart"`
	TotalItems    int                   `json:"totalItems"`
	Totals        domain.Totals         `json:"totals"`
	AppliedCoupon *domain.AppliedCoupon `json:"appliedCoupon"`
}

type ItemResponse struct {
	Item   domain.CartLineItem `json:"item"`
	InCart bool                `json:"inCart"`
}

// store resolves the session store, writing the error response itself on failure.
func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, context.Context, context.CancelFunc, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	s, err := h.sessions.Session(ctx, getSessionFromContext(r.Context()))
	if err != nil {
		cancel()
		handleError(w, r, h.log, err)
		return nil, nil, nil, false
	}
	return s, ctx, cancel, true
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, _, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	respondJSON(w, http.StatusOK, cartResponse(s, pricing.ViewCart))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "Quantity must be between 1 and 99")
		return
	}

	s, ctx, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	line := domain.CartLineItem{
		ProductID:      req.ProductID,
		Variant:        req.Variant,
		Title:          req.Title,
		Price:          req.Price,
		CompareAtPrice: req.CompareAtPrice,
		Image:          req.Image,
		Handle:         req.Handle,
	}
	item, err := s.IncrementItem(ctx, line, req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, ItemResponse{Item: item, InCart: true})
}

// UpdateQuantity handles PUT /api/v1/cart/items/{product_id}?variant=
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "Quantity must be between 0 and 99")
		return
	}

	s, ctx, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	item, err := s.SetItemQuantity(ctx, productID, r.URL.Query().Get("variant"), req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, ItemResponse{Item: item, InCart: req.Quantity > 0})
}

// RemoveItem handles DELETE /api/v1/cart/items/{product_id}?variant=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	s, ctx, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.RemoveItem(ctx, productID, r.URL.Query().Get("variant"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.ClearCart(ctx)
	w.WriteHeader(http.StatusNoContent)
}

// GetTotals handles GET /api/v1/cart/totals?view=cart|checkout
func (h *CartHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	view := pricing.View(r.URL.Query().Get("view"))
	switch view {
	case "":
		view = pricing.ViewCart
	case pricing.ViewCart, pricing.ViewCheckout:
	default:
		respondError(w, http.StatusBadRequest, "invalid_view", "view must be cart or checkout")
		return
	}

	s, _, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	respondJSON(w, http.StatusOK, s.Totals(view))
}

// ApplyCoupon handles POST /api/v1/cart/coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req ApplyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "coupon code is required")
		return
	}

	s, ctx, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	if _, err := s.ApplyCoupon(ctx, req.Code); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(s, pricing.ViewCart))
}

// RemoveCoupon handles DELETE /api/v1/cart/coupon
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.RemoveCoupon(ctx)
	w.WriteHeader(http.StatusNoContent)
}

// ListCoupons handles GET /api/v1/coupons
func (h *CartHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, pricing.Coupons())
}

func cartResponse(s *cart.Store, view pricing.View) CartResponse {
	return CartResponse{
		Cart:          s.Cart(),
		TotalItems:    s.TotalItems(),
		Totals:        s.Totals(view),
		AppliedCoupon: s.AppliedCoupon(),
	}
}
