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

// countingKV counts reads so hydration can be observed.
type countingKV struct {
	storage.KV
	mu    sync.Mutex
	reads int
}

func (c *countingKV) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	return c.KV.Get(ctx, key)
}

func (c *countingKV) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func newTestManager(t *testing.T, kv storage.KV, idleTTL time.Duration) (*Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := NewManager(storage.NewPersistent(kv, logger.Discard()), rec, pricing.DefaultCalculator(), logger.Discard(), idleTTL)
	t.Cleanup(func() { _ = m.Close() })
	return m, rec
}

func TestManager_SessionReturnsSameStore(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryKV(), 0)
	ctx := context.Background()

	a, err := m.Session(ctx, "s1")
	require.NoError(t, err)
	b, err := m.Session(ctx, "s1")
	require.NoError(t, err)
	c, err := m.Session(ctx, "s2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, m.Len())
}

func TestManager_EmptySession(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryKV(), 0)
	_, err := m.Session(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestManager_CancelledContext(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryKV(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Session(ctx, "s1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.Len())
}

func TestManager_ConcurrentHydrationLoadsOnce(t *testing.T) {
	kv := &countingKV{KV: storage.NewMemoryKV()}
	m, _ := newTestManager(t, kv, 0)

	var wg sync.WaitGroup
	stores := make([]*Store, 20)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Session(context.Background(), "s1")
			assert.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range stores {
		assert.Same(t, stores[0], s)
	}
	// cart, wishlist, coupon, pending order and last order are each read once
	assert.Equal(t, 5, kv.Reads())
}

func TestManager_EvictsIdleStores(t *testing.T) {
	kv := storage.NewMemoryKV()
	m, _ := newTestManager(t, kv, 40*time.Millisecond)
	ctx := context.Background()

	s, err := m.Session(ctx, "s1")
	require.NoError(t, err)
	_, err = s.IncrementItem(ctx, apple(), 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return m.Len() == 0
	}, time.Second, 10*time.Millisecond)

	again, err := m.Session(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, s, again)
	assert.Equal(t, 2, again.CartQuantity("p1", domain.DefaultVariant))
}

func TestManager_ConfirmOrder(t *testing.T) {
	m, rec := newTestManager(t, storage.NewMemoryKV(), 0)
	ctx := context.Background()

	s, err := m.Session(ctx, "s1")
	require.NoError(t, err)
	_, _ = s.IncrementItem(ctx, apple(), 1)
	_, err = s.ApplyCoupon(ctx, "FLAT100")
	require.NoError(t, err)
	snap, err := s.CheckoutSnapshot(ctx, time.Now())
	require.NoError(t, err)

	cleared, err := m.ConfirmOrder(ctx, "s1", "someone-elses-order")
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Len(t, s.Cart(), 1)

	cleared, err = m.ConfirmOrder(ctx, "s1", snap.OrderID)
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Empty(t, s.Cart())
	assert.Nil(t, s.AppliedCoupon())
	assert.Zero(t, rec.lastState().TotalItems)

	_, err = m.ConfirmOrder(ctx, "", snap.OrderID)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestManager_KeepsStoreInUse(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryKV(), 40*time.Millisecond)
	ctx := context.Background()

	first, err := m.Session(ctx, "s1")
	require.NoError(t, err)

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		s, err := m.Session(ctx, "s1")
		require.NoError(t, err)
		require.Same(t, first, s, "store was evicted while in use")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_Forget(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryKV(), 0)
	_, err := m.Session(context.Background(), "s1")
	require.NoError(t, err)

	m.Forget("s1")
	assert.Zero(t, m.Len())
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, storage.NewMemoryKV(), time.Minute)
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}
