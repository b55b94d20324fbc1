package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidSession = errors.New("session id is required")

// Manager owns the stores of all active sessions. Stores idle longer than the idle TTL are
// dropped from memory; their state is already durable and is hydrated again on next use.
type Manager struct {
	persist *storage.Persistent
	pub     Publisher
	calc    pricing.Calculator
	log     *slog.Logger
	idleTTL time.Duration

	mu     sync.RWMutex
	stores map[string]*Store
	sfg    singleflight.Group // collapses concurrent hydration of one session

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewManager creates the manager. A positive idleTTL starts the background eviction loop.
func NewManager(persist *storage.Persistent, pub Publisher, calc pricing.Calculator, log *slog.Logger, idleTTL time.Duration) *Manager {
	m := &Manager{
		persist:     persist,
		pub:         pub,
		calc:        calc,
		log:         log,
		idleTTL:     idleTTL,
		stores:      make(map[string]*Store),
		stopCleanup: make(chan struct{}),
	}

	if idleTTL > 0 {
		m.wg.Add(1)
		go m.cleanupLoop(idleTTL / 2)
	}
	return m
}

// Session returns the store of the session, hydrating it on first use.
func (m *Manager) Session(ctx context.Context, id string) (*Store, error) {
	if id == "" {
		return nil, ErrInvalidSession
	}

	if s, ok := m.lookup(id); ok {
		return s, nil
	}

	v, err, _ := m.sfg.Do(id, func() (interface{}, error) {
		if s, ok := m.lookup(id); ok {
			return s, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s := Open(ctx, id, m.persist, m.pub, m.calc, m.log)
		m.mu.Lock()
		m.stores[id] = s
		m.mu.Unlock()
		m.log.DebugContext(ctx, "session hydrated", slog.String("session", id), slog.Int("cart_items", s.TotalItems()))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// lookup returns a hydrated store and marks it used while the eviction loop is locked out.
func (m *Manager) lookup(id string) (*Store, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[id]
	if ok {
		s.touch()
	}
	return s, ok
}

// ConfirmOrder clears the cart of a session if orderID is the order still pending there.
func (m *Manager) ConfirmOrder(ctx context.Context, id, orderID string) (bool, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return false, err
	}
	return s.ConfirmOrder(ctx, orderID), nil
}

// Forget drops the in-memory store of a session.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, id)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stores)
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := time.Now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.stores {
		if s.LastUsed().Before(cutoff) {
			delete(m.stores, id)
		}
	}
}

// Close stops the eviction loop and waits for it to finish.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	m.wg.Wait()
	return nil
}
