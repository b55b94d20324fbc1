package catalog

type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type Image struct {
	Src     string `json:"src"`
	AltText string `json:"altText,omitempty"`
}

type Variant struct {
	ID             string `json:"id"`
	Title          string `json:"title,omitempty"`
	Price          Money  `json:"price"`
	CompareAtPrice *Money `json:"compareAtPrice,omitempty"`
}

type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Description string    `json:"description"`
	Images      []Image   `json:"images"`
	Variants    []Variant `json:"variants"`
}

// FeaturedImage returns the first image of the product, if any.
func (p Product) FeaturedImage() (Image, bool) {
	if len(p.Images) == 0 {
		return Image{}, false
	}
	return p.Images[0], true
}

type Collection struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Handle      string    `json:"handle"`
	Description string    `json:"description"`
	Image       *Image    `json:"image,omitempty"`
	Products    []Product `json:"products"`
}

// GraphQL wire shapes. Connections arrive as edges/node pairs and are flattened into the
// types above.

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type connection[T any] struct {
	PageInfo pageInfo `json:"pageInfo"`
	Edges    []struct {
		Node T `json:"node"`
	} `json:"edges"`
}

func (c connection[T]) nodes() []T {
	out := make([]T, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}

type productNode struct {
	ID          string                  `json:"id"`
	Title       string                  `json:"title"`
	Handle      string                  `json:"handle"`
	Description string                  `json:"description"`
	Images      connection[Image]       `json:"images"`
	Variants    connection[variantNode] `json:"variants"`
}

type variantNode struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Price          Money  `json:"price"`
	CompareAtPrice *Money `json:"compareAtPrice"`
}

func (n productNode) product() Product {
	p := Product{
		ID:          n.ID,
		Title:       n.Title,
		Handle:      n.Handle,
		Description: n.Description,
		Images:      n.Images.nodes(),
		Variants:    make([]Variant, 0, len(n.Variants.Edges)),
	}
	for _, v := range n.Variants.nodes() {
		p.Variants = append(p.Variants, Variant(v))
	}
	return p
}

type collectionNode struct {
	ID          string                  `json:"id"`
	Title       string                  `json:"title"`
	Handle      string                  `json:"handle"`
	Description string                  `json:"description"`
	Image       *Image                  `json:"image"`
	Products    connection[productNode] `json:"products"`
}

func (n collectionNode) collection() Collection {
	c := Collection{
		ID:          n.ID,
		Title:       n.Title,
		Handle:      n.Handle,
		Description: n.Description,
		Image:       n.Image,
		Products:    make([]Product, 0, len(n.Products.Edges)),
	}
	for _, p := range n.Products.nodes() {
		c.Products = append(c.Products, p.product())
	}
	return c
}

// listable reports whether the collection should be shown in listings.
func (n collectionNode) listable() bool {
	return n.Image != nil && n.Image.Src != "" && len(n.Products.Edges) > 0
}
