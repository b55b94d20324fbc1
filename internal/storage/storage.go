package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Durable key names, one JSON value per session and name.
const (
	KeyCart           = "cart"
	KeyWishlist       = "wishlist"
	KeyAppliedCoupon  = "appliedCoupon"
	KeyCouponDiscount = "couponDiscount"
	KeyPendingOrder   = "pendingOrder"
	KeyLastOrder      = "lastOrder"
)

// KV is the durable key/value backend behind a session's state.
// Consumers define this interface, backends implement it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key scopes a durable key name to a session.
func Key(session, name string) string {
	return session + ":" + name
}
