package catalog

import (
	"context"
	"errors"
	"log/slog"
)

// Source is the upstream catalog. *Client implements it.
type Source interface {
	Products(ctx context.Context) ([]Product, error)
	Collections(ctx context.Context) ([]Collection, error)
	ProductByHandle(ctx context.Context, handle string) (Product, error)
	CollectionByHandle(ctx context.Context, handle string) (Collection, error)
}

// Service fronts the catalog for the HTTP layer. Upstream failures are logged and turned
// into empty results so pages render an explicit empty state.
type Service struct {
	src   Source
	cache Cache
	log   *slog.Logger
}

// NewService creates the service. cache may be nil.
func NewService(src Source, cache Cache, log *slog.Logger) *Service {
	return &Service{src: src, cache: cache, log: log}
}

func (s *Service) Products(ctx context.Context) []Product {
	products, err := cached(ctx, s, "products", s.src.Products)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to fetch products", slog.Any("error", err))
		return []Product{}
	}
	return nonNil(products)
}

func (s *Service) Collections(ctx context.Context) []Collection {
	collections, err := cached(ctx, s, "collections", s.src.Collections)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to fetch collections", slog.Any("error", err))
		return []Collection{}
	}
	return nonNil(collections)
}

// ProductByHandle reports false when the product does not exist or cannot be fetched.
func (s *Service) ProductByHandle(ctx context.Context, handle string) (Product, bool) {
	p, err := cached(ctx, s, "product:"+handle, func(ctx context.Context) (Product, error) {
		return s.src.ProductByHandle(ctx, handle)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.ErrorContext(ctx, "failed to fetch product", slog.String("handle", handle), slog.Any("error", err))
		}
		return Product{}, false
	}
	return p, true
}

func (s *Service) CollectionByHandle(ctx context.Context, handle string) (Collection, bool) {
	c, err := cached(ctx, s, "collection:"+handle, func(ctx context.Context) (Collection, error) {
		return s.src.CollectionByHandle(ctx, handle)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.ErrorContext(ctx, "failed to fetch collection", slog.String("handle", handle), slog.Any("error", err))
		}
		return Collection{}, false
	}
	c.Products = nonNil(c.Products)
	return c, true
}

// cached reads key from the cache, falling back to fetch and storing its result.
// Cache failures never fail the request.
func cached[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	if s.cache != nil {
		var v T
		err := s.cache.Get(ctx, key, &v)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.WarnContext(ctx, "catalog cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v); err != nil {
			s.log.WarnContext(ctx, "catalog cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return v, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
