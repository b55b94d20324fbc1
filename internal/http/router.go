package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Carts          *CartHandler
	Products       *ProductHandler
	Checkout       *CheckoutHandler
	Notifications  *NotificationHandler
	Events         *EventsHandler
	Sessions       *Sessions
	RequestTimeout time.Duration
	MaxRequestBody int64
	Log            *slog.Logger
}

// NewRouter wires the storefront API. The event stream is mounted outside the request
// timeout since it lives as long as the client stays connected.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(cfg.Log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cfg.Sessions.Middleware)

		r.Get("/events", cfg.Events.Stream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(middleware.Compress(5))
			if cfg.MaxRequestBody > 0 {
				r.Use(middleware.RequestSize(cfg.MaxRequestBody))
			}

			r.Get("/cart", cfg.Carts.GetCart)
			r.Delete("/cart", cfg.Carts.ClearCart)
			r.Post("/cart/items", cfg.Carts.AddItem)
			r.Put("/cart/items/{product_id}", cfg.Carts.UpdateQuantity)
			r.Delete("/cart/items/{product_id}", cfg.Carts.RemoveItem)
			r.Get("/cart/totals", cfg.Carts.GetTotals)
			r.Post("/cart/coupon", cfg.Carts.ApplyCoupon)
			r.Delete("/cart/coupon", cfg.Carts.RemoveCoupon)
			r.Get("/coupons", cfg.Carts.ListCoupons)

			r.Get("/wishlist", cfg.Carts.GetWishlist)
			r.Post("/wishlist/toggle", cfg.Carts.ToggleWishlist)
			r.Delete("/wishlist/{id}", cfg.Carts.RemoveFromWishlist)

			r.Get("/notifications", cfg.Notifications.List)
			r.Delete("/notifications/{id}", cfg.Notifications.Dismiss)

			r.Post("/checkout", cfg.Checkout.Checkout)
			r.Get("/orders", cfg.Checkout.GetOrders)
			r.Get("/orders/last", cfg.Checkout.GetLastOrder)
			r.Get("/orders/{id}", cfg.Checkout.GetOrder)

			r.Get("/products", cfg.Products.GetProducts)
			r.Get("/products/{handle}", cfg.Products.GetProduct)
			r.Get("/collections", cfg.Products.GetCollections)
			r.Get("/collections/{handle}", cfg.Products.GetCollection)
		})
	})

	return r
}
