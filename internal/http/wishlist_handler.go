package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type WishlistResponse struct {
	Wishlist []domain.WishlistItem `json:"wishlist"`
}

type ToggleResponse struct {
	Action     domain.Action `json:"action"`
	InWishlist bool          `json:"inWishlist"`
}

// GetWishlist handles GET /api/v1/wishlist
func (h *CartHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	s, _, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	respondJSON(w, http.StatusOK, WishlistResponse{Wishlist: s.Wishlist()})
}

// ToggleWishlist handles POST /api/v1/wishlist/toggle
func (h *CartHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	var item domain.WishlistItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	s, ctx, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	action, err := s.ToggleWishlist(ctx, item)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, ToggleResponse{
		Action:     action,
		InWishlist: action == domain.ActionAdded,
	})
}

// RemoveFromWishlist handles DELETE /api/v1/wishlist/{id}
func (h *CartHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	s, ctx, cancel, ok := h.store(w, r)
	if !ok {
		return
	}
	defer cancel()

	s.RemoveFromWishlist(ctx, chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
