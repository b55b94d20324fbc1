package cart

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/google/uuid"
)

// pendingOrder is the order being placed for the current cart. It survives failed
// submissions so a retry of the same cart reuses the order id.
type pendingOrder struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	PlacedAt    time.Time `json:"placedAt"`
}

// CheckoutSnapshot is the cart, coupon and checkout totals read under one lock, together with
// the id of the order they belong to.
type CheckoutSnapshot struct {
	OrderID  string
	PlacedAt time.Time
	Items    []domain.CartLineItem
	Coupon   *domain.AppliedCoupon
	Totals   domain.Totals
}

// CheckoutSnapshot captures the cart for an order. The order id is kept until the order is
// completed and reused as long as the cart and coupon stay unchanged; any change starts a new
// order placed at now.
func (s *Store) CheckoutSnapshot(ctx context.Context, now time.Time) (CheckoutSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if len(s.cart) == 0 {
		return CheckoutSnapshot{}, ErrEmptyCart
	}

	fp := fingerprint(s.cart, s.coupon)
	if s.pending == nil || s.pending.Fingerprint != fp {
		s.pending = &pendingOrder{ID: uuid.NewString(), Fingerprint: fp, PlacedAt: now.UTC()}
		s.persist.SaveObject(ctx, s.key(storage.KeyPendingOrder), s.pending)
	}

	snap := CheckoutSnapshot{
		OrderID:  s.pending.ID,
		PlacedAt: s.pending.PlacedAt,
		Items:    append([]domain.CartLineItem{}, s.cart...),
		Totals:   s.calc.Totals(s.cart, s.couponLocked(), pricing.ViewCheckout),
	}
	if s.coupon != nil {
		c := *s.coupon
		snap.Coupon = &c
	}
	return snap, nil
}

// CompleteOrder records order as the session's last order. When it is the pending order the
// cart and coupon are cleared; the result reports whether that happened.
func (s *Store) CompleteOrder(ctx context.Context, order domain.Order) bool {
	s.mu.Lock()
	s.lastOrder = &order
	s.persist.SaveObject(ctx, s.key(storage.KeyLastOrder), order)
	return s.settleLocked(ctx, order.ID)
}

// ConfirmOrder clears the cart when orderID is still the pending order. Confirmations of
// orders that were already completed, or of unknown orders, leave the cart alone.
func (s *Store) ConfirmOrder(ctx context.Context, orderID string) bool {
	s.mu.Lock()
	return s.settleLocked(ctx, orderID)
}

func (s *Store) LastOrder() *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastOrder == nil {
		return nil
	}
	o := *s.lastOrder
	return &o
}

// PendingOrderID returns the id of the order in progress, if any.
func (s *Store) PendingOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return ""
	}
	return s.pending.ID
}

// settleLocked releases s.mu.
func (s *Store) settleLocked(ctx context.Context, orderID string) bool {
	s.touch()
	if orderID == "" || s.pending == nil || s.pending.ID != orderID {
		s.mu.Unlock()
		return false
	}

	s.pending = nil
	s.persist.Remove(ctx, s.key(storage.KeyPendingOrder))

	s.coupon = nil
	s.saveCouponLocked(ctx)
	s.cart = []domain.CartLineItem{}
	s.saveCartLocked(ctx)
	s.publishLocked()
	return true
}

func fingerprint(cart []domain.CartLineItem, coupon *domain.AppliedCoupon) string {
	var code string
	if coupon != nil {
		code = coupon.Code
	}
	data, _ := json.Marshal(struct {
		Cart   []domain.CartLineItem `json:"cart"`
		Coupon string                `json:"coupon"`
	}{cart, code})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
