// Package consumer listens for completed orders and empties the carts they came from. A cart
// is emptied only while the completed order is still its pending order, so a late event never
// clears a cart started after checkout.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// OrderCompletedEvent is the payload published by the order backend once an order is
// fulfilled. Older producers name the session user_id.
type OrderCompletedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Session     string    `json:"session"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e OrderCompletedEvent) session() string {
	if e.Session != "" {
		return e.Session
	}
	return e.UserID
}

// OrderConfirmer settles the pending order of a session and reports whether the cart was
// cleared. *cart.Manager implements it.
type OrderConfirmer interface {
	ConfirmOrder(ctx context.Context, session, orderID string) (bool, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type OrderConsumer struct {
	carts   OrderConfirmer
	reader  messageReader
	log     *slog.Logger
	backoff time.Duration
}

func NewOrderConsumer(carts OrderConfirmer, topic, groupID string, log *slog.Logger, brokers ...string) *OrderConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return newOrderConsumer(carts, reader, log)
}

func newOrderConsumer(carts OrderConfirmer, reader messageReader, log *slog.Logger) *OrderConsumer {
	return &OrderConsumer{
		carts:   carts,
		reader:  reader,
		log:     log,
		backoff: time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (c *OrderConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *OrderConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", slog.Any("error", err))
	}
}

func (c *OrderConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		c.log.ErrorContext(ctx, "error reading message", slog.Any("error", err))
		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
		}
		return
	}

	var event OrderCompletedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.WarnContext(ctx, "error parsing message", slog.Int64("offset", m.Offset), slog.Any("error", err))
		return
	}

	session := event.session()
	if session == "" || event.OrderID == "" {
		c.log.WarnContext(ctx, "order event without session or order id",
			slog.String("session", session),
			slog.String("order_id", event.OrderID),
		)
		return
	}

	cleared, err := c.carts.ConfirmOrder(ctx, session, event.OrderID)
	if err != nil {
		c.log.ErrorContext(ctx, "failed to confirm order",
			slog.String("session", session),
			slog.String("order_id", event.OrderID),
			slog.Any("error", err),
		)
		return
	}
	if !cleared {
		c.log.DebugContext(ctx, "order already settled",
			slog.String("session", session),
			slog.String("order_id", event.OrderID),
		)
		return
	}
	c.log.InfoContext(ctx, "cart cleared for completed order",
		slog.String("session", session),
		slog.String("order_id", event.OrderID),
	)
}
