package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/go-chi/chi/v5"
)

// Catalog is the fail-soft product catalog. *catalog.Service implements it.
type Catalog interface {
	Products(ctx context.Context) []catalog.Product
	Collections(ctx context.Context) []catalog.Collection
	ProductByHandle(ctx context.Context, handle string) (catalog.Product, bool)
	CollectionByHandle(ctx context.Context, handle string) (catalog.Collection, bool)
}

type ProductHandler struct {
	catalog Catalog
	timeout time.Duration
}

func NewProductHandler(c Catalog, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		timeout: timeout,
	}
}

type ProductsResponse struct {
	Products []catalog.Product `json:"products"`
	Total    int               `json:"total"`
}

type CollectionsResponse struct {
	Collections []catalog.Collection `json:"collections"`
	Total       int                  `json:"total"`
}

// GetProducts handles GET /api/v1/products
func (h *ProductHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products := h.catalog.Products(ctx)
	respondJSON(w, http.StatusOK, ProductsResponse{Products: products, Total: len(products)})
}

// GetProduct handles GET /api/v1/products/{handle}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, ok := h.catalog.ProductByHandle(ctx, chi.URLParam(r, "handle"))
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GetCollections handles GET /api/v1/collections
func (h *ProductHandler) GetCollections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	collections := h.catalog.Collections(ctx)
	respondJSON(w, http.StatusOK, CollectionsResponse{Collections: collections, Total: len(collections)})
}

// GetCollection handles GET /api/v1/collections/{handle}
func (h *ProductHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	collection, ok := h.catalog.CollectionByHandle(ctx, chi.URLParam(r, "handle"))
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "collection not found")
		return
	}
	respondJSON(w, http.StatusOK, collection)
}
