package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/toast"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type mockSubmitter struct {
	mu     sync.RWMutex
	err    error
	orders []domain.Order
}

func (m *mockSubmitter) Submit(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockSubmitter) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockSubmitter) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

type mockCatalog struct {
	products    []catalog.Product
	collections []catalog.Collection
}

func (m *mockCatalog) Products(context.Context) []catalog.Product { return m.products }

func (m *mockCatalog) Collections(context.Context) []catalog.Collection { return m.collections }

func (m *mockCatalog) ProductByHandle(_ context.Context, handle string) (catalog.Product, bool) {
	for _, p := range m.products {
		if p.Handle == handle {
			return p, true
		}
	}
	return catalog.Product{}, false
}

func (m *mockCatalog) CollectionByHandle(_ context.Context, handle string) (catalog.Collection, bool) {
	for _, c := range m.collections {
		if c.Handle == handle {
			return c, true
		}
	}
	return catalog.Collection{}, false
}

type testEnv struct {
	router    http.Handler
	manager   *cart.Manager
	bus       *events.Bus
	toasts    *toast.Center
	sessions  *Sessions
	submitter *mockSubmitter
	catalog   *mockCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()

	bus := events.NewBus()
	persist := storage.NewPersistent(storage.NewMemoryKV(), log)
	manager := cart.NewManager(persist, bus, pricing.DefaultCalculator(), log, 0)
	toasts := toast.NewCenter(bus, time.Minute, toast.DefaultCap)
	submitter := &mockSubmitter{}
	cat := &mockCatalog{
		products:    []catalog.Product{},
		collections: []catalog.Collection{},
	}
	sessions := NewSessions(testSecret, time.Hour, false, log)

	t.Cleanup(func() {
		toasts.Close()
		_ = manager.Close()
	})

	router := NewRouter(RouterConfig{
		Carts:          NewCartHandler(manager, 5*time.Second, log),
		Products:       NewProductHandler(cat, 5*time.Second),
		Checkout:       NewCheckoutHandler(checkout.NewService(manager, submitter, nil, log), 5*time.Second, log),
		Notifications:  NewNotificationHandler(toasts),
		Events:         NewEventsHandler(bus, manager, log),
		Sessions:       sessions,
		RequestTimeout: 5 * time.Second,
		MaxRequestBody: 1 << 20,
		Log:            log,
	})

	return &testEnv{
		router:    router,
		manager:   manager,
		bus:       bus,
		toasts:    toasts,
		sessions:  sessions,
		submitter: submitter,
		catalog:   cat,
	}
}

// client is a shopper that keeps the session cookie between requests.
type client struct {
	env    *testEnv
	cookie *http.Cookie
}

func (e *testEnv) client(t *testing.T, session string) *client {
	t.Helper()
	token, err := e.sessions.Token(session)
	require.NoError(t, err)
	return &client{env: e, cookie: &http.Cookie{Name: SessionCookie, Value: token}}
}

func (c *client) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.env.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func appleRequest(quantity int) AddItemRequest {
	return AddItemRequest{
		ProductID: "p1",
		Title:     "Apple",
		Price:     "120",
		Image:     "apple.png",
		Handle:    "apple",
		Quantity:  quantity,
	}
}

func mustField(t *testing.T, body []byte, name string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &fields))
	v, ok := fields[name]
	require.True(t, ok, "field %q missing", name)
	return v
}
