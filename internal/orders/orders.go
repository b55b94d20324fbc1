// Package orders hands finalized orders to the order backend.
package orders

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrDuplicateOrder = errors.New("order already submitted")
	ErrOrderNotFound  = errors.New("order not found")
	ErrRejected       = errors.New("order rejected by backend")
)

// Submitter accepts a finalized order. Returning ErrDuplicateOrder means the order was
// already accepted by an earlier attempt.
type Submitter interface {
	Submit(ctx context.Context, order domain.Order) error
}

// Reader looks up accepted orders. *PostgresStore implements it.
type Reader interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListBySession(ctx context.Context, session string) ([]domain.Order, error)
}
