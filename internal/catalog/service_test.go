package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mu          sync.RWMutex
	products    []Product
	collections []Collection
	err         error
	calls       int
}

func (m *mockSource) record() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *mockSource) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *mockSource) Products(context.Context) ([]Product, error) {
	if err := m.record(); err != nil {
		return nil, err
	}
	return m.products, nil
}

func (m *mockSource) Collections(context.Context) ([]Collection, error) {
	if err := m.record(); err != nil {
		return nil, err
	}
	return m.collections, nil
}

func (m *mockSource) ProductByHandle(_ context.Context, handle string) (Product, error) {
	if err := m.record(); err != nil {
		return Product{}, err
	}
	for _, p := range m.products {
		if p.Handle == handle {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (m *mockSource) CollectionByHandle(_ context.Context, handle string) (Collection, error) {
	if err := m.record(); err != nil {
		return Collection{}, err
	}
	for _, c := range m.collections {
		if c.Handle == handle {
			return c, nil
		}
	}
	return Collection{}, ErrNotFound
}

func setupTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func TestService_FailSoft(t *testing.T) {
	src := &mockSource{err: errors.New("upstream down")}
	s := NewService(src, nil, logger.Discard())
	ctx := context.Background()

	products := s.Products(ctx)
	assert.NotNil(t, products)
	assert.Empty(t, products)

	collections := s.Collections(ctx)
	assert.NotNil(t, collections)
	assert.Empty(t, collections)

	_, ok := s.ProductByHandle(ctx, "x")
	assert.False(t, ok)
	_, ok = s.CollectionByHandle(ctx, "x")
	assert.False(t, ok)
}

func TestService_EmptyUpstreamIsNonNil(t *testing.T) {
	s := NewService(&mockSource{}, nil, logger.Discard())
	assert.NotNil(t, s.Products(context.Background()))
}

func TestService_ByHandle(t *testing.T) {
	src := &mockSource{
		products:    []Product{{ID: "p1", Handle: "turmeric", Title: "Turmeric"}},
		collections: []Collection{{ID: "c1", Handle: "spices"}},
	}
	s := NewService(src, nil, logger.Discard())

	p, ok := s.ProductByHandle(context.Background(), "turmeric")
	require.True(t, ok)
	assert.Equal(t, "Turmeric", p.Title)

	_, ok = s.ProductByHandle(context.Background(), "saffron")
	assert.False(t, ok)

	c, ok := s.CollectionByHandle(context.Background(), "spices")
	require.True(t, ok)
	assert.NotNil(t, c.Products)
}

func TestService_ReadThroughCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	src := &mockSource{products: []Product{{ID: "p1", Handle: "turmeric"}}}
	s := NewService(src, cache, logger.Discard())
	ctx := context.Background()

	first := s.Products(ctx)
	second := s.Products(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.Calls())
	assert.True(t, mr.Exists("catalog:products"))

	ttl := mr.TTL("catalog:products")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.Less(t, ttl, 6*time.Minute)
}

func TestService_CacheDownFallsBackToSource(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()

	src := &mockSource{products: []Product{{ID: "p1"}}}
	s := NewService(src, cache, logger.Discard())

	assert.Len(t, s.Products(context.Background()), 1)
	assert.Equal(t, 1, src.Calls())
}

func TestService_FailuresAreNotCached(t *testing.T) {
	cache, mr := setupTestCache(t)
	src := &mockSource{err: errors.New("boom")}
	s := NewService(src, cache, logger.Discard())

	s.Collections(context.Background())
	assert.False(t, mr.Exists("catalog:collections"))
}

func TestRedisCache_Miss(t *testing.T) {
	cache, _ := setupTestCache(t)
	var out []Product
	err := cache.Get(context.Background(), "products", &out)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Corrupt(t *testing.T) {
	cache, mr := setupTestCache(t)
	require.NoError(t, mr.Set("catalog:products", "{bad"))

	var out []Product
	err := cache.Get(context.Background(), "products", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
