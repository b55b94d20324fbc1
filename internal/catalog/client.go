// Package catalog reads products and collections from the headless Storefront GraphQL API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	pageSize          = 100
	defaultAPIVersion = "2023-07"
	tokenHeader       = "X-Shopify-Storefront-Access-Token"
)

var (
	ErrNotConfigured = errors.New("catalog api is not configured")
	ErrNotFound      = errors.New("catalog entry not found")
	// ErrCursorStalled means the API reported another page without moving its cursor forward.
	ErrCursorStalled = errors.New("catalog cursor did not advance")
)

type Config struct {
	Domain     string
	Token      string
	APIVersion string
	// Endpoint overrides the URL derived from Domain and APIVersion.
	Endpoint string
	// RPS paces outgoing requests. Zero disables pacing.
	RPS     float64
	Timeout time.Duration
	Breaker circuitbreaker.Config
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Domain == "" {
		return ""
	}
	version := c.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	return fmt.Sprintf("https://%s/api/%s/graphql.json", c.Domain, version)
}

type Client struct {
	endpoint string
	token    string
	http     circuitbreaker.Doer
	limiter  *rate.Limiter
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	breaker := cfg.Breaker
	if breaker == (circuitbreaker.Config{}) {
		breaker = circuitbreaker.DefaultConfig()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}

	return &Client{
		endpoint: cfg.endpoint(),
		token:    cfg.Token,
		http:     circuitbreaker.New("catalog", base, breaker, log),
		limiter:  limiter,
	}
}

// Products returns every product, following the cursor until the last page.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	pages := newPager()
	for {
		var data struct {
			Products connection[productNode] `json:"products"`
		}
		if err := c.query(ctx, productsQuery, map[string]any{"first": pageSize, "after": pages.after}, &data); err != nil {
			return nil, fmt.Errorf("products: %w", err)
		}
		for _, n := range data.Products.nodes() {
			out = append(out, n.product())
		}
		more, err := pages.advance(data.Products.PageInfo)
		if err != nil {
			return nil, fmt.Errorf("products: %w", err)
		}
		if !more {
			return out, nil
		}
	}
}

// Collections returns every collection that has an image and at least one product.
func (c *Client) Collections(ctx context.Context) ([]Collection, error) {
	var out []Collection
	pages := newPager()
	for {
		var data struct {
			Collections connection[collectionNode] `json:"collections"`
		}
		if err := c.query(ctx, collectionsQuery, map[string]any{"first": pageSize, "after": pages.after}, &data); err != nil {
			return nil, fmt.Errorf("collections: %w", err)
		}
		for _, n := range data.Collections.nodes() {
			if n.listable() {
				col := n.collection()
				col.Products = nil
				out = append(out, col)
			}
		}
		more, err := pages.advance(data.Collections.PageInfo)
		if err != nil {
			return nil, fmt.Errorf("collections: %w", err)
		}
		if !more {
			return out, nil
		}
	}
}

// pager walks a cursor-paginated connection and refuses to revisit a cursor.
type pager struct {
	after *string
	seen  map[string]struct{}
}

func newPager() *pager {
	return &pager{seen: make(map[string]struct{})}
}

// advance moves past the page described by info and reports whether another page follows.
func (p *pager) advance(info pageInfo) (bool, error) {
	if !info.HasNextPage {
		return false, nil
	}
	if info.EndCursor == "" {
		return false, fmt.Errorf("%w: empty end cursor", ErrCursorStalled)
	}
	if _, ok := p.seen[info.EndCursor]; ok {
		return false, fmt.Errorf("%w: %q repeated", ErrCursorStalled, info.EndCursor)
	}
	p.seen[info.EndCursor] = struct{}{}
	cursor := info.EndCursor
	p.after = &cursor
	return true, nil
}

func (c *Client) ProductByHandle(ctx context.Context, handle string) (Product, error) {
	var data struct {
		Product *productNode `json:"product"`
	}
	if err := c.query(ctx, productByHandleQuery, map[string]any{"handle": handle}, &data); err != nil {
		return Product{}, fmt.Errorf("product %q: %w", handle, err)
	}
	if data.Product == nil {
		return Product{}, ErrNotFound
	}
	return data.Product.product(), nil
}

// CollectionByHandle returns the collection with its first page of products.
func (c *Client) CollectionByHandle(ctx context.Context, handle string) (Collection, error) {
	var data struct {
		Collection *collectionNode `json:"collection"`
	}
	if err := c.query(ctx, collectionByHandleQuery, map[string]any{"handle": handle, "first": pageSize}, &data); err != nil {
		return Collection{}, fmt.Errorf("collection %q: %w", handle, err)
	}
	if data.Collection == nil {
		return Collection{}, ErrNotFound
	}
	return data.Collection.collection(), nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (c *Client) query(ctx context.Context, query string, vars map[string]any, out any) error {
	if c.endpoint == "" || c.token == "" {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api request failed with status %d", resp.StatusCode)
	}

	var gql graphQLResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(gql.Errors) > 0 {
		msgs := make([]string, 0, len(gql.Errors))
		for _, e := range gql.Errors {
			msgs = append(msgs, e.Message)
		}
		return errors.New(strings.Join(msgs, ", "))
	}
	if len(gql.Data) == 0 || string(gql.Data) == "null" {
		return errors.New("empty response data")
	}
	if err := json.Unmarshal(gql.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
