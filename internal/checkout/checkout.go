// Package checkout turns a session's cart into a submitted order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/mail"
	"github.com/fjod/go_cart/storefront/internal/orders"
)

var (
	ErrEmptyCart = errors.New("cart is empty, nothing to checkout")
	// ErrSubmissionFailed means the order backend did not accept the order. The cart is left
	// untouched and the request may be retried.
	ErrSubmissionFailed = errors.New("order submission failed")
)

// Sessions resolves the store of a session. *cart.Manager implements it.
type Sessions interface {
	Session(ctx context.Context, id string) (*cart.Store, error)
}

type Details struct {
	Billing         domain.Address `json:"billing"`
	Shipping        domain.Address `json:"shipping"`
	ShipToDifferent bool           `json:"shipToDifferent"`
	Notes           string         `json:"orderNotes"`
}

type Service struct {
	sessions  Sessions
	submitter orders.Submitter
	reader    orders.Reader
	mailer    mail.Mailer
	log       *slog.Logger
	now       func() time.Time
}

func NewService(sessions Sessions, submitter orders.Submitter, mailer mail.Mailer, log *slog.Logger) *Service {
	if mailer == nil {
		mailer = mail.Nop{}
	}
	svc := &Service{
		sessions:  sessions,
		submitter: submitter,
		mailer:    mailer,
		log:       log,
		now:       time.Now,
	}
	if r, ok := submitter.(orders.Reader); ok {
		svc.reader = r
	}
	return svc
}

// PlaceOrder submits the session's cart with checkout totals. The cart and its coupon are
// cleared only once the order is accepted. A retry of an unchanged cart submits the same order
// id, so a backend that already accepted it reports a duplicate instead of a second order.
func (s *Service) PlaceOrder(ctx context.Context, session string, details Details) (domain.Order, error) {
	store, err := s.sessions.Session(ctx, session)
	if err != nil {
		return domain.Order{}, err
	}

	snap, err := store.CheckoutSnapshot(ctx, s.now())
	if errors.Is(err, cart.ErrEmptyCart) {
		return domain.Order{}, ErrEmptyCart
	}
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:              snap.OrderID,
		Number:          OrderNumber(snap.PlacedAt),
		Session:         session,
		Billing:         details.Billing,
		Shipping:        details.Shipping,
		ShipToDifferent: details.ShipToDifferent,
		Notes:           details.Notes,
		Items:           snap.Items,
		Coupon:          snap.Coupon,
		Totals:          snap.Totals,
		CreatedAt:       snap.PlacedAt,
	}
	if !order.ShipToDifferent {
		order.Shipping = order.Billing
	}

	if err := s.submitter.Submit(ctx, order); err != nil {
		if !errors.Is(err, orders.ErrDuplicateOrder) {
			s.log.ErrorContext(ctx, "order submission failed",
				slog.String("session", session),
				slog.String("order_id", order.ID),
				slog.String("order_number", order.Number),
				slog.Any("error", err),
			)
			return domain.Order{}, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
		}
		s.log.InfoContext(ctx, "order already submitted", slog.String("order_id", order.ID))
	}

	store.CompleteOrder(ctx, order)

	s.log.InfoContext(ctx, "order placed",
		slog.String("session", session),
		slog.String("order_number", order.Number),
		slog.Float64("total", order.Totals.Total),
	)

	if err := s.mailer.SendOrderConfirmation(ctx, order); err != nil {
		s.log.WarnContext(ctx, "failed to send order confirmation",
			slog.String("order_number", order.Number),
			slog.Any("error", err),
		)
	}
	return order, nil
}

// OrderNumber derives the human-facing order number from the last eight digits of the
// Unix millisecond timestamp.
func OrderNumber(t time.Time) string {
	return fmt.Sprintf("ECM%08d", t.UnixMilli()%100_000_000)
}

// Order returns an order placed by the session. Without an order database only the
// session's last order can be found.
func (s *Service) Order(ctx context.Context, session, id string) (domain.Order, error) {
	if s.reader != nil {
		order, err := s.reader.GetOrder(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		if order.Session != session {
			return domain.Order{}, orders.ErrOrderNotFound
		}
		return order, nil
	}

	last, err := s.LastOrder(ctx, session)
	if err != nil {
		return domain.Order{}, err
	}
	if last.ID != id {
		return domain.Order{}, orders.ErrOrderNotFound
	}
	return last, nil
}

// Orders lists the orders of the session, newest first.
func (s *Service) Orders(ctx context.Context, session string) ([]domain.Order, error) {
	if s.reader != nil {
		return s.reader.ListBySession(ctx, session)
	}

	last, err := s.LastOrder(ctx, session)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return []domain.Order{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []domain.Order{last}, nil
}

// LastOrder returns the most recent order placed from this session.
func (s *Service) LastOrder(ctx context.Context, session string) (domain.Order, error) {
	store, err := s.sessions.Session(ctx, session)
	if err != nil {
		return domain.Order{}, err
	}
	last := store.LastOrder()
	if last == nil {
		return domain.Order{}, orders.ErrOrderNotFound
	}
	return *last, nil
}
