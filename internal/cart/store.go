// Package cart holds the cart/wishlist state of shopper sessions and reconciles every
// mutation into it.
//
// A Store is the only writer of its session's durable state. Each mutation runs under the
// store's lock, persists the affected collection, and queues a state-sync signal followed by
// the notification signals it produced. Queued batches are delivered in mutation order, outside
// the lock, by whichever mutating goroutine finds no delivery in progress. Subscribers may
// query the store from their callback; a mutation made from a callback is queued behind the
// batch being delivered.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidItem     = errors.New("item has no product id")
	ErrEmptyCart       = errors.New("cart is empty")
)

// Publisher receives the signals of a store. *events.Bus implements it.
type Publisher interface {
	PublishState(domain.StateSync)
	PublishNotification(domain.Notification)
}

type Store struct {
	session string
	persist *storage.Persistent
	pub     Publisher
	calc    pricing.Calculator
	log     *slog.Logger

	mu        sync.Mutex
	cart      []domain.CartLineItem
	wishlist  []domain.WishlistItem
	coupon    *domain.AppliedCoupon
	pending   *pendingOrder
	lastOrder *domain.Order

	// signals waiting for delivery, guarded by mu
	outbox   []signalBatch
	draining bool

	lastUsed atomic.Int64
}

// Open hydrates the store of session from durable storage.
func Open(ctx context.Context, session string, persist *storage.Persistent, pub Publisher, calc pricing.Calculator, log *slog.Logger) *Store {
	s := &Store{
		session: session,
		persist: persist,
		pub:     pub,
		calc:    calc,
		log:     log.With(slog.String("session", session)),
	}

	s.cart = normalizeCart(storage.LoadList[domain.CartLineItem](ctx, persist, s.key(storage.KeyCart)))
	s.wishlist = dedupeWishlist(storage.LoadList[domain.WishlistItem](ctx, persist, s.key(storage.KeyWishlist)))

	var applied domain.AppliedCoupon
	if persist.LoadObject(ctx, s.key(storage.KeyAppliedCoupon), &applied) && applied.Code != "" {
		s.coupon = &applied
	}
	var pending pendingOrder
	if persist.LoadObject(ctx, s.key(storage.KeyPendingOrder), &pending) && pending.ID != "" {
		s.pending = &pending
	}
	var last domain.Order
	if persist.LoadObject(ctx, s.key(storage.KeyLastOrder), &last) && last.ID != "" {
		s.lastOrder = &last
	}
	s.touch()
	return s
}

func (s *Store) Session() string {
	return s.session
}

// IncrementItem adds delta to the (productId, variant) entry, creating it from line when absent.
func (s *Store) IncrementItem(ctx context.Context, line domain.CartLineItem, delta int) (domain.CartLineItem, error) {
	if delta < 1 {
		return domain.CartLineItem{}, ErrInvalidQuantity
	}
	if line.ProductID == "" {
		return domain.CartLineItem{}, ErrInvalidItem
	}
	line.Variant = domain.NormalizeVariant(line.Variant)

	s.mu.Lock()
	s.touch()

	action := domain.ActionUpdated
	idx := s.indexOf(line.ProductID, line.Variant)
	if idx >= 0 {
		s.cart[idx].Quantity += delta
	} else {
		line.Quantity = delta
		s.cart = append(s.cart, line)
		idx = len(s.cart) - 1
		action = domain.ActionAdded
	}
	result := s.cart[idx]

	s.saveCartLocked(ctx)
	s.publishLocked(s.notification(domain.CategoryCart, action, domain.CartNotificationItem(result, result.Quantity)))
	return result, nil
}

// SetItemQuantity overwrites the quantity of an existing entry. Zero removes it.
func (s *Store) SetItemQuantity(ctx context.Context, productID, variant string, quantity int) (domain.CartLineItem, error) {
	if quantity < 0 {
		return domain.CartLineItem{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	s.touch()

	idx := s.indexOf(productID, variant)
	if idx < 0 {
		s.mu.Unlock()
		return domain.CartLineItem{}, ErrItemNotFound
	}

	if quantity == 0 {
		removed := s.removeAtLocked(idx)
		s.saveCartLocked(ctx)
		s.publishLocked(s.notification(domain.CategoryCart, domain.ActionRemoved, domain.CartNotificationItem(removed, removed.Quantity)))
		removed.Quantity = 0
		return removed, nil
	}

	s.cart[idx].Quantity = quantity
	result := s.cart[idx]
	s.saveCartLocked(ctx)
	s.publishLocked(s.notification(domain.CategoryCart, domain.ActionUpdated, domain.CartNotificationItem(result, result.Quantity)))
	return result, nil
}

// RemoveItem drops the entry if present and reports whether it was.
func (s *Store) RemoveItem(ctx context.Context, productID, variant string) bool {
	s.mu.Lock()
	s.touch()

	idx := s.indexOf(productID, variant)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	removed := s.removeAtLocked(idx)
	s.saveCartLocked(ctx)
	s.publishLocked(s.notification(domain.CategoryCart, domain.ActionRemoved, domain.CartNotificationItem(removed, removed.Quantity)))
	return true
}

// ClearCart empties the cart. Only a state-sync signal is emitted.
func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	s.touch()

	s.cart = []domain.CartLineItem{}
	s.saveCartLocked(ctx)
	s.publishLocked()
}

// ToggleWishlist removes the item when present and appends it otherwise.
func (s *Store) ToggleWishlist(ctx context.Context, item domain.WishlistItem) (domain.Action, error) {
	if item.ID == "" {
		return "", ErrInvalidItem
	}

	s.mu.Lock()
	s.touch()

	if idx := s.wishlistIndex(item.ID); idx >= 0 {
		removed := s.removeWishlistAtLocked(idx)
		s.saveWishlistLocked(ctx)
		s.publishLocked(s.notification(domain.CategoryWishlist, domain.ActionRemoved, domain.WishlistNotificationItem(removed)))
		return domain.ActionRemoved, nil
	}

	s.wishlist = append(s.wishlist, item)
	s.saveWishlistLocked(ctx)
	s.publishLocked(s.notification(domain.CategoryWishlist, domain.ActionAdded, domain.WishlistNotificationItem(item)))
	return domain.ActionAdded, nil
}

// AddToWishlist appends the item unless its id is already wishlisted.
func (s *Store) AddToWishlist(ctx context.Context, item domain.WishlistItem) (bool, error) {
	if item.ID == "" {
		return false, ErrInvalidItem
	}

	s.mu.Lock()
	s.touch()

	if s.wishlistIndex(item.ID) >= 0 {
		s.mu.Unlock()
		return false, nil
	}

	s.wishlist = append(s.wishlist, item)
	s.saveWishlistLocked(ctx)
	s.publishLocked(s.notification(domain.CategoryWishlist, domain.ActionAdded, domain.WishlistNotificationItem(item)))
	return true, nil
}

// RemoveFromWishlist drops the item if present and reports whether it was.
func (s *Store) RemoveFromWishlist(ctx context.Context, id string) bool {
	s.mu.Lock()
	s.touch()

	idx := s.wishlistIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}

	removed := s.removeWishlistAtLocked(idx)
	s.saveWishlistLocked(ctx)
	s.publishLocked(s.notification(domain.CategoryWishlist, domain.ActionRemoved, domain.WishlistNotificationItem(removed)))
	return true
}

// ApplyCoupon attaches the coupon with the given code if the current subtotal qualifies.
func (s *Store) ApplyCoupon(ctx context.Context, code string) (domain.AppliedCoupon, error) {
	coupon, err := pricing.LookupCoupon(code)
	if err != nil {
		return domain.AppliedCoupon{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if len(s.cart) == 0 {
		return domain.AppliedCoupon{}, ErrEmptyCart
	}

	applied, err := pricing.Apply(coupon, pricing.Subtotal(s.cart))
	if err != nil {
		return domain.AppliedCoupon{}, err
	}
	s.coupon = &applied
	s.saveCouponLocked(ctx)
	return applied, nil
}

func (s *Store) RemoveCoupon(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.coupon = nil
	s.saveCouponLocked(ctx)
}

func (s *Store) AppliedCoupon() *domain.AppliedCoupon {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coupon == nil {
		return nil
	}
	c := *s.coupon
	return &c
}

// Totals derives the totals of the current cart for the given view.
func (s *Store) Totals(view pricing.View) domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.calc.Totals(s.cart, s.couponLocked(), view)
}

func (s *Store) couponLocked() *domain.Coupon {
	if s.coupon == nil {
		return nil
	}
	c := s.coupon.Coupon
	return &c
}

func (s *Store) Cart() []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return append([]domain.CartLineItem{}, s.cart...)
}

func (s *Store) Wishlist() []domain.WishlistItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return append([]domain.WishlistItem{}, s.wishlist...)
}

func (s *Store) Snapshot() domain.StateSync {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) IsInCart(productID, variant string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(productID, variant) >= 0
}

// CartQuantity returns the quantity of the entry, or 0 when absent.
func (s *Store) CartQuantity(productID, variant string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(productID, variant); idx >= 0 {
		return s.cart[idx].Quantity
	}
	return 0
}

func (s *Store) IsInWishlist(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wishlistIndex(id) >= 0
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalItems(s.cart)
}

// LastUsed reports when the store was last touched.
func (s *Store) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Store) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Store) key(name string) string {
	return storage.Key(s.session, name)
}

func (s *Store) indexOf(productID, variant string) int {
	for i, l := range s.cart {
		if l.Matches(productID, variant) {
			return i
		}
	}
	return -1
}

func (s *Store) wishlistIndex(id string) int {
	for i, w := range s.wishlist {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAtLocked(idx int) domain.CartLineItem {
	removed := s.cart[idx]
	s.cart = append(s.cart[:idx:idx], s.cart[idx+1:]...)
	return removed
}

func (s *Store) removeWishlistAtLocked(idx int) domain.WishlistItem {
	removed := s.wishlist[idx]
	s.wishlist = append(s.wishlist[:idx:idx], s.wishlist[idx+1:]...)
	return removed
}

// saveCartLocked persists the cart and re-validates the applied coupon against the new subtotal.
func (s *Store) saveCartLocked(ctx context.Context) {
	storage.SaveList(ctx, s.persist, s.key(storage.KeyCart), s.cart)

	if s.coupon == nil {
		return
	}
	subtotal := pricing.Subtotal(s.cart)
	applied, err := pricing.Apply(s.coupon.Coupon, subtotal)
	if err != nil || len(s.cart) == 0 {
		s.log.InfoContext(ctx, "dropping coupon no longer valid for cart",
			slog.String("coupon", s.coupon.Code), slog.Float64("subtotal", subtotal))
		s.coupon = nil
	} else {
		s.coupon = &applied
	}
	s.saveCouponLocked(ctx)
}

func (s *Store) saveWishlistLocked(ctx context.Context) {
	storage.SaveList(ctx, s.persist, s.key(storage.KeyWishlist), s.wishlist)
}

func (s *Store) saveCouponLocked(ctx context.Context) {
	if s.coupon == nil {
		s.persist.Remove(ctx, s.key(storage.KeyAppliedCoupon))
		s.persist.Remove(ctx, s.key(storage.KeyCouponDiscount))
		return
	}
	s.persist.SaveObject(ctx, s.key(storage.KeyAppliedCoupon), s.coupon)
	s.persist.SaveFloat(ctx, s.key(storage.KeyCouponDiscount), s.coupon.DiscountAmount)
}

type signalBatch struct {
	state domain.StateSync
	notes []domain.Notification
}

// publishLocked queues the signals of the current mutation and releases the store lock. If no
// other goroutine is delivering, the caller drains the queue, taking the lock only to pop.
func (s *Store) publishLocked(notes ...domain.Notification) {
	s.outbox = append(s.outbox, signalBatch{state: s.snapshotLocked(), notes: notes})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for {
		batch := s.outbox[0]
		s.outbox[0] = signalBatch{}
		s.outbox = s.outbox[1:]
		s.mu.Unlock()

		s.pub.PublishState(batch.state)
		for _, n := range batch.notes {
			s.pub.PublishNotification(n)
		}

		s.mu.Lock()
		if len(s.outbox) == 0 {
			s.outbox = nil
			s.draining = false
			s.mu.Unlock()
			return
		}
	}
}

func (s *Store) snapshotLocked() domain.StateSync {
	return domain.StateSync{
		Session:    s.session,
		Cart:       append([]domain.CartLineItem{}, s.cart...),
		Wishlist:   append([]domain.WishlistItem{}, s.wishlist...),
		TotalItems: totalItems(s.cart),
	}
}

func (s *Store) notification(category domain.Category, action domain.Action, item domain.NotificationItem) domain.Notification {
	return domain.Notification{
		ID:        uuid.NewString(),
		Session:   s.session,
		Category:  category,
		Action:    action,
		Item:      item,
		CreatedAt: time.Now(),
	}
}

func totalItems(lines []domain.CartLineItem) int {
	var n int
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// normalizeCart merges duplicate identities and drops non-positive quantities left by
// older or hand-edited state.
func normalizeCart(lines []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			continue
		}
		l.Variant = domain.NormalizeVariant(l.Variant)
		merged := false
		for i := range out {
			if out[i].Matches(l.ProductID, l.Variant) {
				out[i].Quantity += l.Quantity
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, l)
		}
	}
	return out
}

func dedupeWishlist(items []domain.WishlistItem) []domain.WishlistItem {
	out := make([]domain.WishlistItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, w := range items {
		if w.ID == "" {
			continue
		}
		if _, ok := seen[w.ID]; ok {
			continue
		}
		seen[w.ID] = struct{}{}
		out = append(out, w)
	}
	return out
}
