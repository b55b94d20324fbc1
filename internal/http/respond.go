package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/pricing"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain errors to HTTP responses. Unknown errors are logged and hidden.
func handleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var httpStatus int
	var code string
	retryable := false

	switch {
	case errors.Is(err, cart.ErrInvalidSession):
		httpStatus = http.StatusUnauthorized
		code = "unauthorized"
	case errors.Is(err, cart.ErrItemNotFound):
		httpStatus = http.StatusNotFound
		code = "item_not_found"
	case errors.Is(err, cart.ErrInvalidQuantity):
		httpStatus = http.StatusBadRequest
		code = "invalid_quantity"
	case errors.Is(err, cart.ErrInvalidItem):
		httpStatus = http.StatusBadRequest
		code = "invalid_item"
	case errors.Is(err, cart.ErrEmptyCart), errors.Is(err, checkout.ErrEmptyCart):
		httpStatus = http.StatusUnprocessableEntity
		code = "empty_cart"
	case errors.Is(err, pricing.ErrUnknownCoupon):
		httpStatus = http.StatusNotFound
		code = "unknown_coupon"
	case errors.Is(err, pricing.ErrCouponMinimum):
		httpStatus = http.StatusUnprocessableEntity
		code = "coupon_minimum_not_met"
	case errors.Is(err, orders.ErrOrderNotFound):
		httpStatus = http.StatusNotFound
		code = "order_not_found"
	case errors.Is(err, checkout.ErrSubmissionFailed):
		httpStatus = http.StatusBadGateway
		code = "submission_failed"
		retryable = true
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
		retryable = true
	default:
		log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	message := err.Error()
	if code == "submission_failed" {
		message = "order could not be submitted, please try again"
	}
	respondJSON(w, httpStatus, ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: retryable,
	})
}
