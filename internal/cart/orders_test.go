package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutSnapshot_EmptyCart(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryKV())

	_, err := s.CheckoutSnapshot(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, s.PendingOrderID())
}

func TestCheckoutSnapshot_UsesCheckoutTotals(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryKV())
	ctx := context.Background()
	_, _ = s.IncrementItem(ctx, apple(), 2)
	_, err := s.ApplyCoupon(ctx, "FLAT100")
	require.NoError(t, err)

	snap, err := s.CheckoutSnapshot(ctx, time.Now())
	require.NoError(t, err)

	require.Len(t, snap.Items, 1)
	require.NotNil(t, snap.Coupon)
	assert.Equal(t, "FLAT100", snap.Coupon.Code)
	assert.Equal(t, 10.0, snap.Totals.HandlingFee)
	assert.Equal(t, 170.0, snap.Totals.Total)
}

func TestCheckoutSnapshot_ConsistentUnderConcurrentMutations(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryKV())
	ctx := context.Background()
	_, _ = s.IncrementItem(ctx, apple(), 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = s.IncrementItem(ctx, apple(), 1)
		}
	}()

	for i := 0; i < 200; i++ {
		snap, err := s.CheckoutSnapshot(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, pricing.Subtotal(snap.Items), snap.Totals.Subtotal)
	}
	wg.Wait()
}

func TestCheckoutSnapshot_ReusesOrderIDUntilCartChanges(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryKV())
	ctx := context.Background()
	placed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	_, _ = s.IncrementItem(ctx, apple(), 1)

	first, err := s.CheckoutSnapshot(ctx, placed)
	require.NoError(t, err)
	retry, err := s.CheckoutSnapshot(ctx, placed.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, retry.OrderID)
	assert.Equal(t, placed, retry.PlacedAt)

	_, _ = s.IncrementItem(ctx, apple(), 1)
	changed, err := s.CheckoutSnapshot(ctx, placed.Add(2*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first.OrderID, changed.OrderID)
	assert.Equal(t, placed.Add(2*time.Minute), changed.PlacedAt)
}

func TestCheckoutSnapshot_PendingOrderSurvivesReload(t *testing.T) {
	kv := storage.NewMemoryKV()
	s, _ := newTestStore(t, kv)
	ctx := context.Background()
	_, _ = s.IncrementItem(ctx, apple(), 1)

	snap, err := s.CheckoutSnapshot(ctx, time.Now())
	require.NoError(t, err)

	reopened, _ := newTestStore(t, kv)
	again, err := reopened.CheckoutSnapshot(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, snap.OrderID, again.OrderID)
}

func TestCompleteOrder_ClearsCartAndRecordsLastOrder(t *testing.T) {
	kv := storage.NewMemoryKV()
	s, rec := newTestStore(t, kv)
	ctx := context.Background()
	_, _ = s.IncrementItem(ctx, apple(), 1)
	_, err := s.ApplyCoupon(ctx, "FLAT100")
	require.NoError(t, err)

	snap, err := s.CheckoutSnapshot(ctx, time.Now())
	require.NoError(t, err)
	order := domain.Order{ID: snap.OrderID, Number: "ECM00000001", Session: "sess-1", Items: snap.Items}

	assert.True(t, s.CompleteOrder(ctx, order))
	assert.Empty(t, s.Cart())
	assert.Nil(t, s.AppliedCoupon())
	assert.Empty(t, s.PendingOrderID())
	assert.Zero(t, rec.lastState().TotalItems)

	last := s.LastOrder()
	require.NotNil(t, last)
	assert.Equal(t, "ECM00000001", last.Number)

	reopened := Open(ctx, "sess-1", storage.NewPersistent(kv, logger.Discard()), &recorder{}, pricing.DefaultCalculator(), logger.Discard())
	require.NotNil(t, reopened.LastOrder())
	assert.Equal(t, order.ID, reopened.LastOrder().ID)
	assert.Empty(t, reopened.PendingOrderID())
}

func TestConfirmOrder_KeepsCartStartedAfterCheckout(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryKV())
	ctx := context.Background()
	_, _ = s.IncrementItem(ctx, apple(), 1)

	snap, err := s.CheckoutSnapshot(ctx, time.Now())
	require.NoError(t, err)
	require.True(t, s.CompleteOrder(ctx, domain.Order{ID: snap.OrderID}))

	pear := apple()
	pear.ProductID = "p2"
	_, _ = s.IncrementItem(ctx, pear, 1)

	// the completion event of the earlier order arrives late
	assert.False(t, s.ConfirmOrder(ctx, snap.OrderID))
	assert.True(t, s.IsInCart("p2", domain.DefaultVariant))
}

func TestConfirmOrder_ClearsPendingCart(t *testing.T) {
	s, _ := newTestStore(t, storage.NewMemoryKV())
	ctx := context.Background()
	_, _ = s.IncrementItem(ctx, apple(), 1)

	snap, err := s.CheckoutSnapshot(ctx, time.Now())
	require.NoError(t, err)

	assert.False(t, s.ConfirmOrder(ctx, ""))
	assert.True(t, s.ConfirmOrder(ctx, snap.OrderID))
	assert.Empty(t, s.Cart())
	assert.Nil(t, s.LastOrder())
}
